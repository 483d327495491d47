package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMarkOnce(t *testing.T) {
	s := NewStore(time.Minute)

	if !s.MarkOnce("a", FlagVisitorLogged) {
		t.Error("Expected first claim to succeed")
	}
	if s.MarkOnce("a", FlagVisitorLogged) {
		t.Error("Expected second claim to fail")
	}
	if !s.MarkOnce("b", FlagVisitorLogged) {
		t.Error("Expected other session to be independent")
	}
	if !s.MarkOnce("a", BlockedFlag("IP Ban")) {
		t.Error("Expected other flag to be independent")
	}
}

func TestRelease(t *testing.T) {
	s := NewStore(time.Minute)
	s.MarkOnce("a", FlagVisitorLogged)
	s.Release("a", FlagVisitorLogged)

	if s.IsSet("a", FlagVisitorLogged) {
		t.Error("Expected flag to be cleared")
	}
	if !s.MarkOnce("a", FlagVisitorLogged) {
		t.Error("Expected claim after release to succeed")
	}
}

func TestSetAndIsSet(t *testing.T) {
	s := NewStore(time.Minute)
	if s.IsSet("a", FlagDenied) {
		t.Error("Expected flag to start unset")
	}

	s.Set("a", FlagDenied)
	s.Set("a", FlagDenied)
	if !s.IsSet("a", FlagDenied) {
		t.Error("Expected flag to be set")
	}
	if s.IsSet("b", FlagDenied) {
		t.Error("Expected other session to be unaffected")
	}

	s.Release("a", FlagDenied)
	if s.IsSet("a", FlagDenied) {
		t.Error("Expected flag to be cleared")
	}
}

func TestMarkOnceConcurrent(t *testing.T) {
	s := NewStore(time.Minute)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.MarkOnce("a", BlockedFlag("Country Ban")) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Errorf("Expected exactly 1 successful claim, got %d", got)
	}
}

func TestFlagsExpire(t *testing.T) {
	s := NewStore(50 * time.Millisecond)
	s.MarkOnce("a", FlagVisitorLogged)
	time.Sleep(100 * time.Millisecond)

	if s.IsSet("a", FlagVisitorLogged) {
		t.Error("Expected flag to expire with the session TTL")
	}
}
