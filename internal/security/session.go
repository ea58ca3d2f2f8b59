package security

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const (
	sessionName = "olympiad_session"
	tokenKey    = "token"
)

// SessionStore keeps a copy of the issued token in a signed cookie so that
// plain browser navigations (file downloads) can carry it.
type SessionStore struct {
	store *sessions.CookieStore
}

func NewSessionStore(secret string, maxAge time.Duration) *SessionStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionStore{store: store}
}

func (s *SessionStore) SaveToken(w http.ResponseWriter, r *http.Request, token string) error {
	// Get returns a fresh session alongside a decode error for stale cookies.
	session, _ := s.store.Get(r, sessionName)
	session.Values[tokenKey] = token
	return session.Save(r, w)
}

// Token returns the token stored in the request's session cookie.
func (s *SessionStore) Token(r *http.Request) (string, bool) {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		return "", false
	}
	token, ok := session.Values[tokenKey].(string)
	return token, ok && token != ""
}

func (s *SessionStore) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.store.Get(r, sessionName)
	delete(session.Values, tokenKey)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
