// Package stubapi is a self-contained stand-in for the production
// backend: the same resource surface, auth flow, and simulated processing
// pipeline, backed by process memory. It exists for local development of
// the tracker client and for integration tests.
package stubapi

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"talktrack/internal/entity"
	"talktrack/internal/shared/telemetry"
)

// Options tune the stub backend.
type Options struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// StageDelay is the base delay between simulated stage transitions.
	StageDelay time.Duration

	// PollWindow rate-limits per-entity status polls when positive.
	PollWindow time.Duration

	// PageSize is the envelope page size for paginated list requests.
	PageSize int
}

func (o *Options) fill() {
	if o.JWTSecret == "" {
		o.JWTSecret = "dev-secret"
	}
	if o.AccessTokenTTL <= 0 {
		o.AccessTokenTTL = 30 * time.Minute
	}
	if o.RefreshTokenTTL <= 0 {
		o.RefreshTokenTTL = 24 * time.Hour
	}
	if o.StageDelay <= 0 {
		o.StageDelay = 2 * time.Second
	}
	if o.PageSize <= 0 {
		o.PageSize = 20
	}
}

type user struct {
	id       int64
	username string
	email    string
	password string
}

type collection struct {
	kind  entity.Kind
	next  int64
	byID  map[int64]*record
	order []int64 // newest first
}

type downloadGrant struct {
	path    string
	expires time.Time
}

// Server is the in-memory stub backend.
type Server struct {
	opts Options

	mu          sync.Mutex
	users       map[string]*user
	nextUserID  int64
	collections map[string]*collection
	media       map[string]mediaObject
	links       map[string]downloadGrant
	limiter     *pollLimiter
}

type mediaObject struct {
	content  []byte
	mimeType string
}

// NewServer constructs a Server.
func NewServer(opts Options) *Server {
	opts.fill()
	s := &Server{
		opts:  opts,
		users: make(map[string]*user),
		collections: map[string]*collection{
			"conversations": {kind: entity.KindConversation, byID: make(map[int64]*record)},
			"interviews":    {kind: entity.KindInterview, byID: make(map[int64]*record)},
		},
		media: make(map[string]mediaObject),
		links: make(map[string]downloadGrant),
	}
	if opts.PollWindow > 0 {
		s.limiter = newPollLimiter(opts.PollWindow, nil)
	}
	return s
}

// Engine builds the gin router with all routes registered.
func (s *Server) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLog())

	api := engine.Group("/api")
	api.POST("/token/", s.handleToken)
	api.POST("/token/refresh/", s.handleRefresh)
	api.POST("/register/", s.handleRegister)

	authed := api.Group("", s.authRequired())
	authed.GET("/profile/", s.handleProfile)
	for _, resource := range []string{"conversations", "interviews"} {
		resource := resource
		authed.GET("/"+resource+"/", s.handleList(resource))
		authed.POST("/"+resource+"/", s.handleCreate(resource))
		authed.GET("/"+resource+"/:id/", s.handleGet(resource))
		authed.PATCH("/"+resource+"/:id/", s.handlePatch(resource))
		authed.DELETE("/"+resource+"/:id/", s.handleDelete(resource))
		authed.GET("/"+resource+"/:id/download_audio/", s.handleDownloadURL(resource))
	}

	engine.GET("/media/*path", s.handleMedia)
	return engine
}

// requestLog emits a structured log per request.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		telemetry.Info("request.complete", map[string]any{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"request_id":  c.GetHeader("X-Request-Id"),
			"user_id":     c.GetString("userId"),
		})
	}
}

// SeedUser registers an account directly, for dev bootstrap and tests.
func (s *Server) SeedUser(username, email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	s.users[username] = &user{
		id:       s.nextUserID,
		username: username,
		email:    email,
		password: password,
	}
}

func (s *Server) findUser(login string) (*user, bool) {
	if u, ok := s.users[login]; ok {
		return u, true
	}
	// Email login accepted the same way the original backend resolves it.
	if strings.Contains(login, "@") {
		for _, u := range s.users {
			if u.email == login {
				return u, true
			}
		}
	}
	return nil, false
}
