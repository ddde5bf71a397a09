package leaselock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	value string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.value
	return nil
}

// fakeLocks emulates the app_locks statements without expiry.
type fakeLocks struct {
	mu    sync.Mutex
	owner map[string]string
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{owner: make(map[string]string)}
}

func (f *fakeLocks) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	switch sql {
	case tryAcquireSQL:
		if held, ok := f.owner[key]; ok && held != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		f.owner[key] = token
		return fakeRow{value: key}
	case renewSQL:
		if f.owner[key] != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{value: key}
	}
	return fakeRow{err: errors.New("unexpected query")}
}

func (f *fakeLocks) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	if sql == releaseSQL && f.owner[key] == token {
		delete(f.owner, key)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("DELETE 0"), nil
}

func (f *fakeLocks) held(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.owner[key]
	return ok
}

func TestOptionsNormalize(t *testing.T) {
	tests := []struct {
		name      string
		in        Options
		wantTTL   time.Duration
		wantRenew time.Duration
	}{
		{"defaults", Options{}, 5 * time.Minute, 150 * time.Second},
		{"renew above ttl", Options{TTL: 10 * time.Second, RenewEvery: time.Minute}, 10 * time.Second, 5 * time.Second},
		{"short ttl", Options{TTL: time.Second}, time.Second, time.Second},
		{"kept", Options{TTL: time.Minute, RenewEvery: 20 * time.Second}, time.Minute, 20 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.normalize()
			if got.TTL != tt.wantTTL || got.RenewEvery != tt.wantRenew {
				t.Fatalf("expected ttl=%v renew=%v, got ttl=%v renew=%v", tt.wantTTL, tt.wantRenew, got.TTL, got.RenewEvery)
			}
			if got.WaitInterval <= 0 {
				t.Fatalf("expected default wait interval, got %v", got.WaitInterval)
			}
		})
	}
}

func TestAcquire_Busy(t *testing.T) {
	db := newFakeLocks()
	c := New(db)
	ctx := context.Background()

	lease, err := c.Acquire(ctx, BuildKey, Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer lease.Release(ctx)

	if _, err := c.Acquire(ctx, BuildKey, Options{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestAcquire_EmptyKey(t *testing.T) {
	if _, err := New(newFakeLocks()).Acquire(context.Background(), "", Options{}); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	db := newFakeLocks()
	c := New(db)
	ctx := context.Background()

	first, err := c.Acquire(ctx, BuildKey, Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = first.Release(ctx)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	second, err := c.Acquire(waitCtx, BuildKey, Options{Wait: true, WaitInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("expected lease after release, got %v", err)
	}
	_ = second.Release(ctx)
}

func TestAcquire_WaitHonorsContext(t *testing.T) {
	db := newFakeLocks()
	c := New(db)

	held, err := c.Acquire(context.Background(), BuildKey, Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer held.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = c.Acquire(ctx, BuildKey, Options{Wait: true, WaitInterval: 5 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWithLease_ReleasesAfterRun(t *testing.T) {
	db := newFakeLocks()
	c := New(db)

	ran := false
	err := c.WithLease(context.Background(), BuildKey, Options{}, func(ctx context.Context) error {
		ran = true
		if !db.held(BuildKey) {
			t.Fatalf("expected lease to be held while running")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !ran {
		t.Fatalf("expected fn to run")
	}
	if db.held(BuildKey) {
		t.Fatalf("expected lease to be released")
	}
}

func TestWithLease_PropagatesError(t *testing.T) {
	c := New(newFakeLocks())
	want := errors.New("build failed")

	err := c.WithLease(context.Background(), BuildKey, Options{}, func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected build error, got %v", err)
	}
}

func TestLease_LostOnRenewFailure(t *testing.T) {
	db := newFakeLocks()
	c := New(db)

	lease, err := c.Acquire(context.Background(), BuildKey, Options{TTL: 2 * time.Second, RenewEvery: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// another holder takes over
	db.mu.Lock()
	db.owner[BuildKey] = "someone-else"
	db.mu.Unlock()

	select {
	case <-lease.Context.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("expected lease context to be cancelled")
	}
	if !errors.Is(context.Cause(lease.Context), ErrLost) {
		t.Fatalf("expected ErrLost cause, got %v", context.Cause(lease.Context))
	}
}
