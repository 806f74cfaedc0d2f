package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/audiostream/internal/domain/model"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return mr, client, cleanup
}

func fullResult(id string) *model.Result {
	return &model.Result{
		ID:          id,
		Title:       "Test Song",
		Artist:      "Test Artist",
		Duration:    215,
		StreamURL:   "https://cdn.example.com/audio/" + id,
		Thumbnail:   "https://img.example.com/" + id + ".jpg",
		SourceURL:   model.WatchURL(id),
		Success:     true,
		ResolvedVia: "primary",
		ResolvedAt:  time.Now().Truncate(time.Microsecond),
	}
}

func TestRedisResultStore_Get_Hit(t *testing.T) {
	_, client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisResultStore(client)
	ctx := context.Background()
	want := fullResult("dQw4w9WgXcQ")

	if err := store.Set(ctx, want, 5*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, want.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected result, got nil")
	}

	if got.ID != want.ID {
		t.Errorf("ID = %v, want %v", got.ID, want.ID)
	}
	if got.StreamURL != want.StreamURL {
		t.Errorf("StreamURL = %v, want %v", got.StreamURL, want.StreamURL)
	}
	if got.Duration != want.Duration {
		t.Errorf("Duration = %v, want %v", got.Duration, want.Duration)
	}
	if got.ResolvedVia != want.ResolvedVia {
		t.Errorf("ResolvedVia = %v, want %v", got.ResolvedVia, want.ResolvedVia)
	}
	if !got.ResolvedAt.Equal(want.ResolvedAt) {
		t.Errorf("ResolvedAt = %v, want %v", got.ResolvedAt, want.ResolvedAt)
	}
}

func TestRedisResultStore_Get_Miss(t *testing.T) {
	_, client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisResultStore(client)

	got, err := store.Get(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for miss, got %v", got)
	}
}

func TestRedisResultStore_Get_Expired(t *testing.T) {
	mr, client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisResultStore(client)
	ctx := context.Background()

	if err := store.Set(ctx, fullResult("dQw4w9WgXcQ"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	got, err := store.Get(ctx, "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after TTL, got %v", got)
	}
}

func TestRedisResultStore_Get_Corrupt(t *testing.T) {
	mr, client, cleanup := setupTestRedis(t)
	defer cleanup()

	if err := mr.Set("audio:dQw4w9WgXcQ", "{not json"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	store := NewRedisResultStore(client)
	if _, err := store.Get(context.Background(), "dQw4w9WgXcQ"); err == nil {
		t.Error("expected error for corrupt payload")
	}
}

func TestRedisResultStore_Set_Nil(t *testing.T) {
	_, client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisResultStore(client)
	err := store.Set(context.Background(), nil, time.Minute)
	if !errors.Is(err, model.ErrResultMissing) {
		t.Errorf("Set(nil) error = %v, want %v", err, model.ErrResultMissing)
	}
}

func TestRedisResultStore_Delete(t *testing.T) {
	_, client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisResultStore(client)
	ctx := context.Background()
	r := fullResult("dQw4w9WgXcQ")

	if err := store.Set(ctx, r, 5*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Delete(ctx, r.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := store.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %v", got)
	}

	// Delete non-existent key should not error
	if err := store.Delete(ctx, "aaaaaaaaaaa"); err != nil {
		t.Fatalf("Delete failed for non-existent key: %v", err)
	}
}

func TestRedisResultStore_Flush(t *testing.T) {
	mr, client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisResultStore(client)
	ctx := context.Background()

	for _, id := range []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc"} {
		if err := store.Set(ctx, fullResult(id), 5*time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := mr.Set("unrelated", "keep"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	n, err := store.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Flush() = %d, want 3", n)
	}
	if !mr.Exists("unrelated") {
		t.Error("Flush removed a key outside the result prefix")
	}
}

func TestRedisResultStore_buildKey(t *testing.T) {
	_, client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisResultStore(client)

	if got := store.buildKey("dQw4w9WgXcQ"); got != "audio:dQw4w9WgXcQ" {
		t.Errorf("buildKey() = %v, want %v", got, "audio:dQw4w9WgXcQ")
	}
}
