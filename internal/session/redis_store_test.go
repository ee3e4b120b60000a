package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	t.Cleanup(func() { rs.Close() })
	return rs, mr
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	rs, _ := setupTestStore(t)
	ctx := context.Background()

	hash := "abc123"
	if err := rs.SaveRefreshSession(ctx, hash, "usr_1", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession() error = %v", err)
	}

	user, err := rs.LookupRefreshSession(ctx, hash)
	if err != nil {
		t.Fatalf("LookupRefreshSession() error = %v", err)
	}
	if user.ID != "usr_1" {
		t.Fatalf("user ID = %q, want usr_1", user.ID)
	}
}

func TestLookupUnknownSession(t *testing.T) {
	rs, _ := setupTestStore(t)

	if _, err := rs.LookupRefreshSession(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestSessionExpires(t *testing.T) {
	rs, mr := setupTestStore(t)
	ctx := context.Background()

	hash := "expiring"
	if err := rs.SaveRefreshSession(ctx, hash, "usr_1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession() error = %v", err)
	}

	mr.FastForward(2 * time.Hour)

	if _, err := rs.LookupRefreshSession(ctx, hash); err == nil {
		t.Fatal("expected error after expiry")
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	rs, _ := setupTestStore(t)
	ctx := context.Background()

	hash := "revoked"
	if err := rs.SaveRefreshSession(ctx, hash, "usr_1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession() error = %v", err)
	}
	if err := rs.RevokeRefreshSession(ctx, hash); err != nil {
		t.Fatalf("RevokeRefreshSession() error = %v", err)
	}
	if _, err := rs.LookupRefreshSession(ctx, hash); err == nil {
		t.Fatal("expected error after revoke")
	}
}

func TestSaveWithPastExpiryFallsBackToDefaultTTL(t *testing.T) {
	rs, mr := setupTestStore(t)
	ctx := context.Background()

	hash := "stale-expiry"
	if err := rs.SaveRefreshSession(ctx, hash, "usr_1", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("SaveRefreshSession() error = %v", err)
	}

	ttl := mr.TTL("refresh:" + hash)
	if ttl <= 0 || ttl > defaultRefreshTTL {
		t.Fatalf("ttl = %v, want within (0, %v]", ttl, defaultRefreshTTL)
	}
}
