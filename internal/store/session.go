package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"feedsync/internal/api"
	"feedsync/internal/models"
	"feedsync/internal/observability"
	"feedsync/internal/session"
)

// Session store commands.
const (
	CmdLogin    = "login"
	CmdRegister = "register"
	CmdLogout   = "logout"
)

// SessionAPI is the auth part of the server API.
type SessionAPI interface {
	Login(ctx context.Context, creds models.Credentials) (api.Response[models.UserSummary], error)
	Register(ctx context.Context, reg models.Registration) (string, error)
	Logout(ctx context.Context) (string, error)
}

// TokenHolder owns the transport's session token.
type TokenHolder interface {
	Token() string
	SetToken(token string)
	ClearToken()
}

// SessionStore owns the logged-in state. It is the only writer of the
// session and of the persisted session record.
type SessionStore struct {
	api       SessionAPI
	tokens    TokenHolder
	persister session.Persister
	cmd       *commander

	mu       sync.RWMutex
	current  *models.UserSummary
	onLogout []func(ctx context.Context)
}

// NewSessionStore creates a logged-out session store.
func NewSessionStore(sessionAPI SessionAPI, tokens TokenHolder, persister session.Persister, notifier Notifier) *SessionStore {
	s := &SessionStore{
		api:       sessionAPI,
		tokens:    tokens,
		persister: persister,
	}
	// Login and register failures never force a logout, and logout routes an
	// authorization error back into ForceLogout itself.
	s.cmd = newCommander("session", notifier, nil)
	return s
}

// OnLogout registers fn to run after a successful logout.
func (s *SessionStore) OnLogout(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// Hydrate seeds the session from the persisted record, if one exists.
func (s *SessionStore) Hydrate(ctx context.Context) error {
	rec, err := s.persister.Load(ctx)
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "could not load persisted session", "error", err)
		return err
	}
	if rec == nil || rec.User.ID == "" {
		return nil
	}

	user := rec.User
	s.mu.Lock()
	s.current = &user
	s.mu.Unlock()

	if rec.Token != "" {
		s.tokens.SetToken(rec.Token)
	}
	observability.GlobalLogger.DebugContext(ctx, "session restored", "user_id", user.ID, "saved_at", rec.SavedAt)
	return nil
}

// Login submits credentials and, on success, persists and sets the session.
func (s *SessionStore) Login(ctx context.Context, creds models.Credentials) (models.UserSummary, error) {
	ctx, done := s.cmd.begin(ctx, CmdLogin)
	defer done()

	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return models.UserSummary{}, s.cmd.fail(ctx, CmdLogin, models.NewValidationError("Email and password are required"))
	}

	resp, err := s.api.Login(ctx, creds)
	if err != nil {
		return models.UserSummary{}, s.cmd.fail(ctx, CmdLogin, err)
	}
	user := resp.Data
	if user.ID == "" {
		return models.UserSummary{}, s.cmd.fail(ctx, CmdLogin,
			models.NewTransportError("invalid response from server", nil))
	}

	rec := &models.SessionRecord{
		User:    user,
		Token:   s.tokens.Token(),
		SavedAt: time.Now().UTC(),
	}
	if err := s.persister.Save(ctx, rec); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "could not persist session", "error", err)
	}

	s.mu.Lock()
	s.current = &user
	s.mu.Unlock()

	s.cmd.succeed(ctx, CmdLogin, "", map[string]interface{}{"user_id": user.ID})
	return user, nil
}

// Register creates an account. The session is not changed.
func (s *SessionStore) Register(ctx context.Context, reg models.Registration) (string, error) {
	ctx, done := s.cmd.begin(ctx, CmdRegister)
	defer done()

	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Name == "" || reg.Email == "" || reg.Password == "" {
		return "", s.cmd.fail(ctx, CmdRegister, models.NewValidationError("Name, email and password are required"))
	}

	msg, err := s.api.Register(ctx, reg)
	if err != nil {
		return "", s.cmd.fail(ctx, CmdRegister, err)
	}
	s.cmd.succeed(ctx, CmdRegister, msg, nil)
	return msg, nil
}

// Logout ends the server session. On success it clears local state and runs
// the logout listeners. A server rejection keeps the local session, except
// for an authorization error, which forces logout.
func (s *SessionStore) Logout(ctx context.Context) error {
	ctx, done := s.cmd.begin(ctx, CmdLogout)
	defer done()

	msg, err := s.api.Logout(ctx)
	if err != nil {
		if models.IsUnauthorized(err) {
			s.cmd.log.LogForcedLogout(ctx, CmdLogout)
			s.ForceLogout(ctx)
		}
		return s.cmd.fail(ctx, CmdLogout, err)
	}

	s.clear(ctx)

	s.mu.RLock()
	listeners := slices.Clone(s.onLogout)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx)
	}

	s.cmd.succeed(ctx, CmdLogout, msg, nil)
	return nil
}

// ForceLogout clears the session, the persisted record and the transport
// token without contacting the server. It is safe to call repeatedly.
func (s *SessionStore) ForceLogout(ctx context.Context) {
	observability.ForcedLogoutsTotal.Inc()
	s.clear(ctx)
}

func (s *SessionStore) clear(ctx context.Context) {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	s.tokens.ClearToken()
	if err := s.persister.Clear(ctx); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "could not clear persisted session", "error", err)
	}
}

// Current returns a copy of the logged-in user summary, or nil.
func (s *SessionStore) Current() *models.UserSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	u := *s.current
	return &u
}

// IsLoggedIn reports whether a session is set.
func (s *SessionStore) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Loading reports whether a command of the given kind is in flight.
func (s *SessionStore) Loading(cmd string) bool {
	return s.cmd.loading(cmd)
}
