package opmanager

import (
	"context"
	"testing"
	"time"
)

func TestCancelUnknownIDReturnsFalse(t *testing.T) {
	m := New()
	if m.Cancel("does-not-exist") {
		t.Fatal("expected Cancel of unknown id to return false")
	}
}

func TestCancelRegisteredOperation(t *testing.T) {
	m := New()
	ctx, release := m.Register(context.Background(), "op-1")
	defer release()

	if !m.Cancel("op-1") {
		t.Fatal("expected Cancel of registered id to return true")
	}

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("expected context to be cancelled")
	}
}

func TestReleaseRemovesRegistration(t *testing.T) {
	m := New()
	_, release := m.Register(context.Background(), "op-2")
	release()

	if m.Cancel("op-2") {
		t.Fatal("expected Cancel after release to return false")
	}
}

func TestTrackReleasesOnReturn(t *testing.T) {
	m := New()
	err := m.Track(context.Background(), "op-3", func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Cancel("op-3") {
		t.Fatal("expected operation to be released after Track returns")
	}
}
