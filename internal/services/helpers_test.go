package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/alumni-portal/internal/domain"
	"github.com/tbourn/alumni-portal/internal/realtime"
	"github.com/tbourn/alumni-portal/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type dispatched struct {
	n     domain.Notification
	actor string
}

// fakeNotifier records dispatches. calls is guarded since dispatch may run
// from any goroutine.
type fakeNotifier struct {
	mu      sync.Mutex
	calls   []dispatched
	outcome realtime.Outcome
}

func (f *fakeNotifier) Dispatch(_ context.Context, n domain.Notification, actorID string) realtime.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatched{n: n, actor: actorID})
	if f.outcome == "" {
		return realtime.OutcomeDelivered
	}
	return f.outcome
}

func (f *fakeNotifier) all() []dispatched {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dispatched(nil), f.calls...)
}

func newProducer(db *gorm.DB) (*Producer, *fakeNotifier) {
	fn := &fakeNotifier{}
	return &Producer{DB: db, Notifier: fn, Log: zerolog.Nop()}, fn
}

func seedUser(t *testing.T, db *gorm.DB, first, last string, role string) *domain.User {
	t.Helper()
	u := &domain.User{
		Email:     fmt.Sprintf("%s.%s@example.org", first, uuid.NewString()[:8]),
		FirstName: first,
		LastName:  last,
		Role:      role,
	}
	if err := repo.CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func countNotifications(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.Notification{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
