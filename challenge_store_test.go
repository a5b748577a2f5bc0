package dashauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestChallengeStoreRoundTrip(t *testing.T) {
	store := newChallengeStore(newTestRedis(t), "da")
	ctx := context.Background()

	challengeID, err := store.Create(ctx, "u1", "alice@example.com", true, time.Minute)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if challengeID == "" {
		t.Fatal("expected opaque challenge id")
	}

	challenge, err := store.Get(ctx, challengeID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if challenge.UserID != "u1" || challenge.Email != "alice@example.com" || !challenge.RememberClient {
		t.Fatalf("unexpected challenge: %+v", challenge)
	}
	if challenge.Attempts != 0 {
		t.Fatalf("expected zero attempts, got %d", challenge.Attempts)
	}
}

func TestChallengeStoreMissing(t *testing.T) {
	store := newChallengeStore(newTestRedis(t), "da")

	if _, err := store.Get(context.Background(), "never-issued"); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("expected errChallengeNotFound, got %v", err)
	}
}

func TestChallengeStoreDelete(t *testing.T) {
	store := newChallengeStore(newTestRedis(t), "da")
	ctx := context.Background()

	challengeID, err := store.Create(ctx, "u1", "alice@example.com", false, time.Minute)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	deleted, err := store.Delete(ctx, challengeID)
	if err != nil || !deleted {
		t.Fatalf("Delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = store.Delete(ctx, challengeID)
	if err != nil || deleted {
		t.Fatalf("second Delete: deleted=%v err=%v", deleted, err)
	}
	if _, err := store.Get(ctx, challengeID); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("expected errChallengeNotFound after delete, got %v", err)
	}
}

func TestChallengeStoreLazyExpiry(t *testing.T) {
	rdb := newTestRedis(t)
	store := newChallengeStore(rdb, "da")
	ctx := context.Background()

	// Seed a record whose embedded deadline already passed but whose redis
	// key still exists.
	stale, err := encodeLoginChallenge(&loginChallenge{
		UserID:    "u1",
		Email:     "alice@example.com",
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := rdb.Set(ctx, store.key("stale"), stale, time.Minute).Err(); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if _, err := store.Get(ctx, "stale"); !errors.Is(err, errChallengeExpired) {
		t.Fatalf("expected errChallengeExpired, got %v", err)
	}

	// The expired record was removed on read.
	if _, err := store.Get(ctx, "stale"); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("expected errChallengeNotFound after lazy delete, got %v", err)
	}
}

func TestChallengeStoreRecordFailure(t *testing.T) {
	store := newChallengeStore(newTestRedis(t), "da")
	ctx := context.Background()

	challengeID, err := store.Create(ctx, "u1", "alice@example.com", false, time.Minute)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	exceeded, err := store.RecordFailure(ctx, challengeID, 3)
	if err != nil || exceeded {
		t.Fatalf("first failure: exceeded=%v err=%v", exceeded, err)
	}

	challenge, err := store.Get(ctx, challengeID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if challenge.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", challenge.Attempts)
	}

	if exceeded, err = store.RecordFailure(ctx, challengeID, 3); err != nil || exceeded {
		t.Fatalf("second failure: exceeded=%v err=%v", exceeded, err)
	}

	// The third failure reaches maxAttempts and burns the challenge.
	exceeded, err = store.RecordFailure(ctx, challengeID, 3)
	if err != nil {
		t.Fatalf("third failure: %v", err)
	}
	if !exceeded {
		t.Fatal("expected challenge to be burned")
	}
	if _, err := store.Get(ctx, challengeID); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("expected burned challenge gone, got %v", err)
	}
}

func TestChallengeStoreRecordFailureMissing(t *testing.T) {
	store := newChallengeStore(newTestRedis(t), "da")

	if _, err := store.RecordFailure(context.Background(), "never-issued", 3); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("expected errChallengeNotFound, got %v", err)
	}
}

func TestLoginChallengeCodecRejectsUnknownVersion(t *testing.T) {
	encoded, err := encodeLoginChallenge(&loginChallenge{UserID: "u1", Email: "a@b.c", ExpiresAt: 42})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := decodeLoginChallenge(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.UserID != "u1" || decoded.Email != "a@b.c" || decoded.ExpiresAt != 42 {
		t.Fatalf("unexpected decode: %+v", decoded)
	}

	encoded[0] = 99
	if _, err := decodeLoginChallenge(encoded); err == nil {
		t.Fatal("expected unknown version rejection")
	}

	if _, err := decodeLoginChallenge(encoded[:3]); err == nil {
		t.Fatal("expected truncated record rejection")
	}
}
