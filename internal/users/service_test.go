package users

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/reelforge/studio/backend/internal/auth"
)

var usersTestDatabaseCounter int64

func newTestUsers(t *testing.T) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:users_%d?mode=memory&cache=shared", atomic.AddInt64(&usersTestDatabaseCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Identity{}); err != nil {
		t.Fatalf("failed to migrate identity schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Unix(1, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func TestResolveCanonicalUserIDCreatesAndCachesIdentity(t *testing.T) {
	service := newTestUsers(t)

	claims := auth.IdentityClaims{
		Issuer:      "https://auth.studio.example",
		Subject:     "12345",
		Email:       "user@example.com",
		DisplayName: "Example User",
		AvatarURL:   "https://example.com/avatar.png",
	}
	userID, err := service.ResolveCanonicalUserID(claims)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if userID != "12345" {
		t.Fatalf("expected canonical user id from subject, got %q", userID)
	}

	// second call should hit cache and not create a duplicate record.
	userID, err = service.ResolveCanonicalUserID(claims)
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if userID != "12345" {
		t.Fatalf("expected canonical user id to remain stable, got %q", userID)
	}

	var count int64
	if err := service.db.Model(&Identity{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected single identity row, got %d", count)
	}
}

func TestResolveCanonicalUserIDFallsBackToEmail(t *testing.T) {
	service := newTestUsers(t)

	claims := auth.IdentityClaims{
		Issuer: "https://auth.studio.example",
		Email:  "fallback@example.com",
	}
	userID, err := service.ResolveCanonicalUserID(claims)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if userID != "fallback@example.com" {
		t.Fatalf("expected email fallback, got %q", userID)
	}
}

func TestResolveCanonicalUserIDRejectsEmptyClaims(t *testing.T) {
	service := newTestUsers(t)

	if _, err := service.ResolveCanonicalUserID(auth.IdentityClaims{}); err != ErrInvalidIdentity {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
}
