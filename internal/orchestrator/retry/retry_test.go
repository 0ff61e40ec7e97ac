package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Adekabang/DigitalID-sub000/internal/repository"
)

func TestClassifyExplicitMarks(t *testing.T) {
	base := errors.New("anything at all")

	if d := Classify(Transient(base)); !d.IsTransient() {
		t.Fatalf("explicit transient classified as %s", d.Class)
	}
	if d := Classify(Terminal(fmt.Errorf("wrapped: %w", base))); d.IsTransient() {
		t.Fatalf("explicit terminal classified as %s", d.Class)
	}
	if !errors.Is(Transient(base), base) {
		t.Fatal("marked error lost its chain")
	}
}

func TestClassifyContextErrors(t *testing.T) {
	if d := Classify(context.DeadlineExceeded); !d.IsTransient() {
		t.Fatalf("deadline exceeded classified as %s", d.Class)
	}
	if d := Classify(context.Canceled); d.IsTransient() {
		t.Fatalf("canceled classified as %s", d.Class)
	}
}

func TestClassifyRepositorySentinels(t *testing.T) {
	wrapped := fmt.Errorf("finalize appeal: %w", repository.ErrConflict)
	if d := Classify(wrapped); d.IsTransient() {
		t.Fatalf("conflict classified as %s (%s)", d.Class, d.Reason)
	}
	if d := Classify(repository.ErrNotFound); d.IsTransient() {
		t.Fatalf("not found classified as %s", d.Class)
	}
}

func TestClassifyPostgresCodes(t *testing.T) {
	cases := []struct {
		code      string
		transient bool
	}{
		{"40001", true},
		{"40P01", true},
		{"08006", true},
		{"53300", true},
		{"23505", false},
		{"42703", false},
	}
	for _, tc := range cases {
		err := fmt.Errorf("exec: %w", &pgconn.PgError{Code: tc.code})
		if got := Classify(err).IsTransient(); got != tc.transient {
			t.Fatalf("code %s: transient=%v, want %v", tc.code, got, tc.transient)
		}
	}
}

func TestClassifyMessageTokens(t *testing.T) {
	if d := Classify(errors.New("dial tcp: connection refused")); !d.IsTransient() {
		t.Fatalf("connection refused classified as %s", d.Class)
	}
	if d := Classify(errors.New("provider returned http status 503")); !d.IsTransient() {
		t.Fatalf("503 classified as %s", d.Class)
	}
	if d := Classify(errors.New("claim already resolved")); d.IsTransient() {
		t.Fatalf("already resolved classified as %s", d.Class)
	}
	if d := Classify(errors.New("something entirely novel")); d.IsTransient() {
		t.Fatalf("unknown error classified as %s, want terminal default", d.Class)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second

	if got := Backoff(1, base, max); got != base {
		t.Fatalf("attempt 1 = %v, want %v", got, base)
	}
	if got := Backoff(3, base, max); got != 400*time.Millisecond {
		t.Fatalf("attempt 3 = %v, want 400ms", got)
	}
	if got := Backoff(10, base, max); got != max {
		t.Fatalf("attempt 10 = %v, want cap %v", got, max)
	}
}
