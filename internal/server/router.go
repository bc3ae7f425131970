package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pollpilot/backend/internal/auth"
	"github.com/pollpilot/backend/internal/polls"
	"github.com/pollpilot/backend/internal/ratelimit"
	"go.uber.org/zap"
)

const sessionContextKey = "pollpilot_session"

const (
	defaultLoginLimit  = 5
	defaultLoginWindow = time.Minute
)

var (
	errMissingAccounts      = errors.New("accounts service dependency required")
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingPollService   = errors.New("poll service dependency required")
	errMissingLimiter       = errors.New("rate limiter dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// AccountsService is the identity-provider surface the router consumes.
type AccountsService interface {
	Register(ctx context.Context, name, email, password string) (*auth.Profile, error)
	Authenticate(ctx context.Context, email, password string) (*auth.Profile, error)
	GetProfile(ctx context.Context, userID string) (*auth.Profile, error)
}

// SessionTokenManager issues and validates session tokens.
type SessionTokenManager interface {
	IssueSessionToken(userID string, roles []string) (string, int64, error)
	ValidateToken(token string) (auth.Session, error)
}

// Dependencies bundles everything the HTTP handler needs.
type Dependencies struct {
	Accounts    AccountsService
	Tokens      SessionTokenManager
	PollService *polls.Service
	Limiter     ratelimit.Admitter
	Logger      *zap.Logger
	LoginLimit  int
	LoginWindow time.Duration
}

// NewHTTPHandler validates dependencies and builds the gin router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Accounts == nil {
		return nil, errMissingAccounts
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.PollService == nil {
		return nil, errMissingPollService
	}
	if deps.Limiter == nil {
		return nil, errMissingLimiter
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loginLimit := deps.LoginLimit
	if loginLimit <= 0 {
		loginLimit = defaultLoginLimit
	}
	loginWindow := deps.LoginWindow
	if loginWindow <= 0 {
		loginWindow = defaultLoginWindow
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		accounts:    deps.Accounts,
		tokens:      deps.Tokens,
		pollService: deps.PollService,
		limiter:     deps.Limiter,
		logger:      logger,
		loginLimit:  loginLimit,
		loginWindow: loginWindow,
	}

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)
	router.POST("/auth/logout", handler.handleLogout)

	router.GET("/polls/:id", handler.handleGetPoll)
	router.GET("/polls/:id/results", handler.handleResults)
	router.POST("/polls/:id/vote", handler.attachSession, handler.handleVote)

	protected := router.Group("/")
	protected.Use(handler.requireSession)
	protected.GET("/me", handler.handleMe)
	protected.POST("/polls", handler.handleCreatePoll)
	protected.GET("/polls", handler.handleListPolls)
	protected.PUT("/polls/:id", handler.handleUpdatePoll)
	protected.DELETE("/polls/:id", handler.handleDeletePoll)
	protected.GET("/admin/polls", handler.handleAdminListPolls)

	return router, nil
}

type httpHandler struct {
	accounts    AccountsService
	tokens      SessionTokenManager
	pollService *polls.Service
	limiter     ratelimit.Admitter
	logger      *zap.Logger
	loginLimit  int
	loginWindow time.Duration
}

// requireSession rejects requests without a valid bearer token. The admin
// capability rides along on the validated session, resolved from the role
// claim at token validation time.
func (h *httpHandler) requireSession(c *gin.Context) {
	session, err := h.bearerSession(c)
	if err != nil {
		if !errors.Is(err, errInvalidAuthorization) {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(sessionContextKey, session)
	c.Next()
}

// attachSession resolves a bearer token when present but lets anonymous
// requests through. Used by the vote endpoint, which accepts both.
func (h *httpHandler) attachSession(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.Next()
		return
	}
	session, err := h.bearerSession(c)
	if err != nil {
		// A token was offered but is not valid; do not silently fall back
		// to anonymous, that would hide expiry from the caller.
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(sessionContextKey, session)
	c.Next()
}

func (h *httpHandler) bearerSession(c *gin.Context) (auth.Session, error) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return auth.Session{}, errInvalidAuthorization
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return auth.Session{}, errInvalidAuthorization
	}
	return h.tokens.ValidateToken(token)
}

// currentActor derives the acting identity from the validated session stored
// in the request context, never from request payload.
func currentActor(c *gin.Context) polls.Actor {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return polls.Actor{}
	}
	session, ok := value.(auth.Session)
	if !ok {
		return polls.Actor{}
	}
	return polls.Actor{ID: session.UserID, Admin: session.Admin()}
}

// writeDomainError maps service errors onto HTTP statuses. Messages stay
// short and never echo backend error text on authorization-sensitive paths.
func (h *httpHandler) writeDomainError(c *gin.Context, err error) {
	var rateErr *polls.RateLimitError
	switch {
	case errors.Is(err, polls.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, polls.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, polls.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "poll not found"})
	case errors.Is(err, polls.ErrAlreadyVoted):
		c.JSON(http.StatusConflict, gin.H{"error": "already voted"})
	case errors.As(err, &rateErr):
		retryAfter := int(time.Until(rateErr.ResetAt).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	case errors.Is(err, polls.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	case errors.Is(err, polls.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
	case errors.Is(err, auth.ErrInvalidLogin):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
	default:
		h.logger.Error("unexpected service failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
