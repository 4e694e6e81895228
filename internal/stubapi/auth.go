package stubapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"talktrack/internal/shared/server/respond"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

func (s *Server) issueToken(u *user, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"token_type": tokenType,
		"sub":        u.username,
		"user_id":    u.id,
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.opts.JWTSecret))
}

func (s *Server) parseToken(raw, wantType string) (*user, bool) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.opts.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	if typ, _ := claims["token_type"].(string); typ != wantType {
		return nil, false
	}
	sub, _ := claims["sub"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[sub]
	return u, ok
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleToken(c *gin.Context) {
	var creds credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation", "username and password are required", nil)
		return
	}

	s.mu.Lock()
	u, ok := s.findUser(creds.Username)
	s.mu.Unlock()
	if !ok || u.password != creds.Password {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "no active account found with the given credentials", nil)
		return
	}

	access, err := s.issueToken(u, tokenTypeAccess, s.opts.AccessTokenTTL)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "token signing failed", nil)
		return
	}
	refresh, err := s.issueToken(u, tokenTypeRefresh, s.opts.RefreshTokenTTL)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "token signing failed", nil)
		return
	}
	respond.OK(c, gin.H{"access": access, "refresh": refresh})
}

func (s *Server) handleRefresh(c *gin.Context) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Refresh == "" {
		respond.Error(c, http.StatusBadRequest, "validation", "refresh is required", nil)
		return
	}
	u, ok := s.parseToken(body.Refresh, tokenTypeRefresh)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, "token_not_valid", "refresh token is invalid or expired", nil)
		return
	}
	access, err := s.issueToken(u, tokenTypeAccess, s.opts.AccessTokenTTL)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "token signing failed", nil)
		return
	}
	respond.OK(c, gin.H{"access": access})
}

func (s *Server) handleRegister(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil ||
		strings.TrimSpace(body.Username) == "" || body.Password == "" {
		respond.Error(c, http.StatusBadRequest, "validation", "username and password are required", nil)
		return
	}

	s.mu.Lock()
	if _, exists := s.users[body.Username]; exists {
		s.mu.Unlock()
		respond.Error(c, http.StatusBadRequest, "validation", "a user with that username already exists", nil)
		return
	}
	s.nextUserID++
	u := &user{
		id:       s.nextUserID,
		username: body.Username,
		email:    body.Email,
		password: body.Password,
	}
	s.users[u.username] = u
	s.mu.Unlock()

	respond.Created(c, gin.H{"id": u.id, "username": u.username, "email": u.email})
}

func (s *Server) handleProfile(c *gin.Context) {
	s.mu.Lock()
	u, ok := s.users[c.GetString("userId")]
	s.mu.Unlock()
	if !ok {
		respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
		return
	}
	respond.OK(c, gin.H{"id": u.id, "username": u.username, "email": u.email})
}

// authRequired validates the bearer access token and stores identity in
// the request context.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		u, ok := s.parseToken(raw, tokenTypeAccess)
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "token_not_valid", "access token is invalid or expired", nil)
			return
		}
		c.Set("userId", u.username)
		c.Next()
	}
}
