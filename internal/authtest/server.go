// Package authtest runs an in-process fake of the portfolio auth API for tests.
package authtest

import (
	"net/http/httptest"
	"sync"
	"time"

	"portfolio-console/internal/domain/auth"
	"portfolio-console/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options tune the fake server.
type Options struct {
	AccessTTL time.Duration
	TempTTL   time.Duration
	// Now overrides the token clock.
	Now    func() time.Time
	Logger *zap.Logger
}

// Server is a running fake API.
type Server struct {
	http    *httptest.Server
	jwt     *jwt.Manager
	service *authService
	logger  *zap.Logger

	mu            sync.Mutex
	calls         map[string]int
	faults        map[string]int
	noUser        bool
	lastRequestID string
}

// New starts a fake API server. Call Close when done.
func New(opts Options) (*Server, error) {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 30 * time.Minute
	}
	if opts.TempTTL <= 0 {
		opts.TempTTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	key, err := jwt.GenerateRSAKey(2048)
	if err != nil {
		return nil, err
	}
	manager, err := jwt.Build(key, jwt.Config{
		Issuer:   "portfolio-api",
		Audience: "portfolio-console",
		TTL:      opts.AccessTTL,
		TempTTL:  opts.TempTTL,
		KID:      "test",
	})
	if err != nil {
		return nil, err
	}
	if opts.Now != nil {
		manager.Generator.Now = opts.Now
	}

	s := &Server{
		jwt:     manager,
		service: newAuthService(manager, opts.Logger),
		logger:  opts.Logger,
		calls:   make(map[string]int),
		faults:  make(map[string]int),
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	s.setupRouter(r, &authHandler{server: s, service: s.service, logger: opts.Logger})
	s.http = httptest.NewServer(r)
	return s, nil
}

// URL is the base URL of the fake API.
func (s *Server) URL() string { return s.http.URL }

// Close shuts the server down.
func (s *Server) Close() { s.http.Close() }

// AddAccount seeds a user and returns its public profile.
func (s *Server) AddAccount(a Account) (*auth.User, error) {
	return s.service.addAccount(a)
}

// SentCodes lists e-mail codes delivered to an address, oldest first.
func (s *Server) SentCodes(email string) []string {
	return s.service.sentCodes(email)
}

// LastCode is the most recent e-mail code for an address.
func (s *Server) LastCode(email string) string {
	codes := s.SentCodes(email)
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

// IssueAccessToken mints a valid access token outside the login flow.
func (s *Server) IssueAccessToken(userID int64, superuser bool) (string, error) {
	token, _, err := s.jwt.Generator.GenerateAccessToken(userID, superuser)
	return token, err
}

// IssueToken mints a token with an explicit lifetime, negative for already expired.
func (s *Server) IssueToken(userID int64, superuser bool, purpose string, ttl time.Duration) (string, error) {
	token, _, err := s.jwt.Generator.Generate(userID, superuser, purpose, ttl)
	return token, err
}

// Fail makes every request to path answer with status until Recover is called.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[path] = status
}

// Recover clears an injected failure.
func (s *Server) Recover(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.faults, path)
}

// OmitUser drops the user object from login and verify responses.
func (s *Server) OmitUser(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noUser = omit
}

func (s *Server) omitUser() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.noUser
}

// Calls reports how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// LastRequestID is the X-Request-ID of the latest request.
func (s *Server) LastRequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRequestID
}

