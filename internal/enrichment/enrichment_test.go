package enrichment

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"keygate/internal/geo"

	"github.com/pterm/pterm"
)

func quietLogger() *pterm.Logger {
	return pterm.DefaultLogger.WithWriter(io.Discard)
}

func TestNewMMDBProviderMissingDatabase(t *testing.T) {
	_, err := NewMMDBProvider(filepath.Join(t.TempDir(), "missing.mmdb"), "", quietLogger())
	if err == nil {
		t.Error("Expected error for missing City database")
	}
}

func TestMMDBLookupWithoutAddress(t *testing.T) {
	p := &MMDBProvider{logger: quietLogger()}
	_, err := p.Lookup(context.Background(), "")
	if !errors.Is(err, geo.ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
	_, err = p.Lookup(context.Background(), "8.8.8.8")
	if !errors.Is(err, geo.ErrNoData) {
		t.Errorf("Expected ErrNoData without a loaded database, got %v", err)
	}
}

func TestReloadWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "GeoLite2-City.mmdb")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	var reloads atomic.Int32
	rw, err := NewReloadWatcher([]string{path}, func() error {
		reloads.Add(1)
		return nil
	}, 100*time.Millisecond, quietLogger())
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer rw.Close()

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// unrelated files in the same directory are ignored
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for reloads.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(300 * time.Millisecond)

	if got := reloads.Load(); got != 1 {
		t.Errorf("Expected 1 reload, got %d", got)
	}
}
