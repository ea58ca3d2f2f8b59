package handlers

import (
	"encoding/json"
	"net/http"
)

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError writes {"detail": ...}, the error body the frontend reads.
func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "Not Found")
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}
