package fakeapi

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"feedsync/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer   = "feedsync-devapi"
	tokenAudience = "feedsync"
	localsUserID  = "userID"
	localsTokenID = "tokenID"
)

func (s *Server) register(c *fiber.Ctx) error {
	var req models.Registration
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return respondError(c, fiber.StatusBadRequest, "Name, email and password are required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid email address")
	}
	if len(req.Password) < 6 {
		return respondError(c, fiber.StatusBadRequest, "Password must be at least 6 characters")
	}

	if _, err := s.createAccount(req, false); err != nil {
		return respondError(c, fiber.StatusBadRequest, err.Error())
	}
	return respond(c, fiber.StatusCreated, "Registered successfully, you can now log in", nil)
}

var errUserExists = errors.New("User already exists")

func (s *Server) createAccount(req models.Registration, private bool) (*account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[req.Email]; exists {
		return nil, errUserExists
	}
	a := &account{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Private:      private,
		PasswordHash: hash,
	}
	s.accounts[a.ID] = a
	s.byEmail[a.Email] = a.ID
	return a, nil
}

func (s *Server) login(c *fiber.Ctx) error {
	var req models.Credentials
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return respondError(c, fiber.StatusBadRequest, "Email and password are required")
	}

	s.mu.RLock()
	a, ok := s.accounts[s.byEmail[email]]
	var hash []byte
	var summary models.UserSummary
	if ok {
		hash = a.PasswordHash
		summary = s.summary(a.ID)
	}
	s.mu.RUnlock()

	// Wrong email and wrong password answer the same way. Login failures use
	// 400 so the client never treats them as an expired session.
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid email or password")
	}

	token, expires, err := s.generateToken(summary.ID)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return respond(c, fiber.StatusOK, "Logged in successfully", summary)
}

func (s *Server) logout(c *fiber.Ctx) error {
	if jti, ok := c.Locals(localsTokenID).(string); ok && jti != "" {
		s.mu.Lock()
		s.revoked[jti] = time.Now()
		s.mu.Unlock()
	}
	c.Cookie(&fiber.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return respond(c, fiber.StatusOK, "Logged out successfully", nil)
}

func (s *Server) generateToken(userID string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(s.cfg.TokenTTL)
	claims := jwt.MapClaims{
		"sub": userID,
		"iss": tokenIssuer,
		"aud": tokenAudience,
		"exp": expires.Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": uuid.NewString(),
	}
	s.mu.RLock()
	secret := []byte(s.cfg.JWTSecret)
	s.mu.RUnlock()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

// IssueToken signs a token for userID. Tests use it to build sessions
// without going through login.
func (s *Server) IssueToken(userID string) (string, error) {
	token, _, err := s.generateToken(userID)
	return token, err
}

// RevokeAll invalidates every outstanding token, as if the server rotated its
// signing key.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.JWTSecret = uuid.NewString()
}

func (s *Server) parseToken(raw string) (userID, jti string, err error) {
	s.mu.RLock()
	secret := []byte(s.cfg.JWTSecret)
	s.mu.RUnlock()

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", "", errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid claims")
	}
	userID, _ = claims["sub"].(string)
	jti, _ = claims["jti"].(string)
	if userID == "" {
		return "", "", errors.New("missing subject")
	}
	return userID, jti, nil
}

// authRequired accepts the session cookie or a Bearer header.
func (s *Server) authRequired(c *fiber.Ctx) error {
	raw := c.Cookies(s.cfg.CookieName)
	if raw == "" {
		if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
			raw = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if raw == "" {
		return respondError(c, fiber.StatusUnauthorized, models.UnauthorizedMessage)
	}

	userID, jti, err := s.parseToken(raw)
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, models.UnauthorizedMessage)
	}

	s.mu.RLock()
	_, revoked := s.revoked[jti]
	_, exists := s.accounts[userID]
	s.mu.RUnlock()
	if revoked || !exists {
		return respondError(c, fiber.StatusUnauthorized, models.UnauthorizedMessage)
	}

	c.Locals(localsUserID, userID)
	c.Locals(localsTokenID, jti)
	return c.Next()
}

func currentUserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsUserID).(string)
	return id
}
