package testsupport

import (
	"context"
	"testing"

	"recap/internal/config"
	"recap/internal/recording"
)

// MustOpenStore opens a recording.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *recording.Store {
	t.Helper()

	store, err := recording.Open(cfg)
	if err != nil {
		t.Fatalf("recording.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRecording creates a recording row for tests using the provided store.
func NewRecording(t testing.TB, store *recording.Store, title, sourcePath string) *recording.Recording {
	t.Helper()

	rec, err := store.NewRecording(context.Background(), title, sourcePath, 1.0, "")
	if err != nil {
		t.Fatalf("store.NewRecording: %v", err)
	}
	return rec
}
