package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/pollpilot/backend/internal/auth"
	"github.com/pollpilot/backend/internal/polls"
	"github.com/pollpilot/backend/internal/ratelimit"
	"gorm.io/gorm"
)

const testSigningSecret = "router-test-secret"

type routerHarness struct {
	handler http.Handler
	issuer  *auth.TokenIssuer
	service *polls.Service
	db      *gorm.DB
}

type stubAccounts struct {
	profile     *auth.Profile
	registerErr error
	authErr     error
}

func (s *stubAccounts) Register(context.Context, string, string, string) (*auth.Profile, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return s.profile, nil
}

func (s *stubAccounts) Authenticate(context.Context, string, string) (*auth.Profile, error) {
	if s.authErr != nil {
		return nil, s.authErr
	}
	return s.profile, nil
}

func (s *stubAccounts) GetProfile(context.Context, string) (*auth.Profile, error) {
	return s.profile, nil
}

func newRouterHarness(t *testing.T, accounts AccountsService, loginLimit int) *routerHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&polls.Poll{}, &polls.Vote{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	if err := db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_votes_poll_voter " +
			"ON votes(poll_id, voter_id) WHERE voter_id IS NOT NULL;",
	).Error; err != nil {
		t.Fatalf("failed to create vote uniqueness index: %v", err)
	}

	service, err := polls.NewService(polls.ServiceConfig{
		Database:   db,
		IDProvider: polls.NewUUIDProvider(),
		Limiter:    ratelimit.NewMemoryLimiter(nil),
	})
	if err != nil {
		t.Fatalf("failed to build poll service: %v", err)
	}

	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        "pollpilot-auth",
		Audience:      "pollpilot-api",
		TokenTTL:      time.Hour,
	})

	handler, err := NewHTTPHandler(Dependencies{
		Accounts:    accounts,
		Tokens:      issuer,
		PollService: service,
		Limiter:     ratelimit.NewMemoryLimiter(nil),
		LoginLimit:  loginLimit,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	return &routerHarness{handler: handler, issuer: issuer, service: service, db: db}
}

func (h *routerHarness) bearerFor(t *testing.T, userID string, roles ...string) string {
	t.Helper()
	token, _, err := h.issuer.IssueSessionToken(userID, roles)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return "Bearer " + token
}

func (h *routerHarness) createPoll(t *testing.T, ownerID, question string, options []string) *polls.Poll {
	t.Helper()
	poll, err := h.service.CreatePoll(t.Context(), polls.Actor{ID: ownerID}, question, options)
	if err != nil {
		t.Fatalf("failed to create poll: %v", err)
	}
	return poll
}
