package router

import (
	"net/http"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"olympiad-tracker/internal/app"
	"olympiad-tracker/internal/http/handlers"
	"olympiad-tracker/internal/http/middleware"
)

func Setup(a *app.App) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handlers.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)
	r.Use(middleware.Recover(a.Log), middleware.Logger(a.Log))

	authHandler := handlers.NewAuthHandler(a.Auth, a.Tokens, a.Sessions, a.Log)
	adminHandler := handlers.NewAdminHandler(a.DB, a.Ledger, a.Log)
	olympiadHandler := handlers.NewOlympiadHandler(a.Ledger, a.Attachments, a.Log)

	r.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)
	r.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodPost)
	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)

	if a.Config.StaticDir != "" {
		r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(a.Config.StaticDir))))
	}

	protected := r.NewRoute().Subrouter()
	if a.Config.RequireToken {
		protected.Use(middleware.RequireToken(a.Tokens, a.Sessions))
	}
	protected.HandleFunc("/admins", adminHandler.ListAdmins).Methods(http.MethodGet)
	protected.HandleFunc("/admin/olympiads", adminHandler.ListOlympiads).Methods(http.MethodGet)
	protected.HandleFunc("/olympiads", olympiadHandler.Create).Methods(http.MethodPost)
	protected.HandleFunc("/olympiads/{id:[0-9]+}/file", olympiadHandler.File).Methods(http.MethodGet)

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(a.Config.AllowedOrigins),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		gorillahandlers.AllowCredentials(),
	)
	return cors(r)
}
