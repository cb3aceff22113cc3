package auth

import (
	"encoding/gob"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/examportal/examportal/internal/exam"
	"github.com/examportal/examportal/internal/rbac"
)

const sessionName = "examportal-session"

const (
	keyUserID  = "user_id"
	keyRole    = "role"
	keyAttempt = "attempt"
)

// Principal is the authenticated identity carried by the cookie session.
type Principal struct {
	UserID int64
	Role   rbac.Role
}

// Flash is a one-shot message surfaced on the next page load.
type Flash struct {
	Level   string `json:"level"` // success|info|warning|danger
	Message string `json:"message"`
}

func init() {
	gob.Register(Flash{})
}

// Sessions wraps a signed cookie store. It owns the logged-in principal,
// flash messages, and the in-progress exam attempt state. Attempt state is
// scoped to one browser session and never shared across principals.
type Sessions struct {
	store *sessions.CookieStore
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	cs := sessions.NewCookieStore([]byte(secret))
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: cs}
}

func (s *Sessions) get(r *http.Request) *sessions.Session {
	// Get never fails fatally for a cookie store; a bad cookie yields a
	// fresh session, which logs the client out.
	sess, _ := s.store.Get(r, sessionName)
	return sess
}

func (s *Sessions) Principal(r *http.Request) (Principal, bool) {
	sess := s.get(r)
	id, okID := sess.Values[keyUserID].(int64)
	role, okRole := sess.Values[keyRole].(string)
	if !okID || id == 0 || !okRole || !rbac.Role(role).Valid() {
		return Principal{}, false
	}
	return Principal{UserID: id, Role: rbac.Role(role)}, true
}

func (s *Sessions) SignIn(w http.ResponseWriter, r *http.Request, userID int64, role rbac.Role) error {
	sess := s.get(r)
	sess.Values[keyUserID] = userID
	sess.Values[keyRole] = string(role)
	return sess.Save(r, w)
}

// SignOut drops the principal and any attempt state. The cookie itself
// survives so a post-logout flash can still be delivered.
func (s *Sessions) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess := s.get(r)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	return sess.Save(r, w)
}

func (s *Sessions) AddFlash(w http.ResponseWriter, r *http.Request, level, message string) {
	sess := s.get(r)
	sess.AddFlash(Flash{Level: level, Message: message})
	_ = sess.Save(r, w)
}

// Flashes pops all pending flash messages.
func (s *Sessions) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	sess := s.get(r)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	_ = sess.Save(r, w)
	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out
}

// Attempt loads the in-progress attempt state, if any.
func (s *Sessions) Attempt(r *http.Request) (*exam.AttemptState, bool) {
	sess := s.get(r)
	raw, ok := sess.Values[keyAttempt].([]byte)
	if !ok {
		return nil, false
	}
	var a exam.AttemptState
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, false
	}
	return &a, true
}

func (s *Sessions) SaveAttempt(w http.ResponseWriter, r *http.Request, a *exam.AttemptState) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	sess := s.get(r)
	sess.Values[keyAttempt] = raw
	return sess.Save(r, w)
}

func (s *Sessions) ClearAttempt(w http.ResponseWriter, r *http.Request) error {
	sess := s.get(r)
	delete(sess.Values, keyAttempt)
	return sess.Save(r, w)
}
