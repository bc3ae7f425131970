package polls

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/pollpilot/backend/internal/ratelimit"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
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
	if err := db.AutoMigrate(&Poll{}, &Vote{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	if err := db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_votes_poll_voter " +
			"ON votes(poll_id, voter_id) WHERE voter_id IS NOT NULL;",
	).Error; err != nil {
		t.Fatalf("failed to create vote uniqueness index: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Database:   db,
		IDProvider: NewUUIDProvider(),
		Limiter:    ratelimit.NewMemoryLimiter(nil),
		Clock: func() time.Time {
			return time.Unix(1700000000, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

func mustCreatePoll(t *testing.T, service *Service, actor Actor, question string, options []string) *Poll {
	t.Helper()
	poll, err := service.CreatePoll(t.Context(), actor, question, options)
	if err != nil {
		t.Fatalf("failed to create poll: %v", err)
	}
	return poll
}
