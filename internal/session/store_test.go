package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore(idle time.Duration) *Store {
	return NewStore(
		echoTranscriber(nil),
		staticSummarizer(validNoteJSON),
		StoreConfig{IdleTimeout: idle},
		zerolog.Nop())
}

func TestStore_CreateGetDelete(t *testing.T) {
	st := newTestStore(0)

	s := st.Create(&recordingSink{})
	if s.ID() == "" {
		t.Fatal("Expected a non-empty session ID")
	}
	if s.State() != StateOpen {
		t.Errorf("Expected new session in OPEN state, got %s", s.State())
	}

	got, err := st.Get(s.ID())
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got != s {
		t.Error("Get() returned a different session")
	}

	st.Delete(s.ID())
	if _, err := st.Get(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if st.Len() != 0 {
		t.Errorf("Expected empty store, got %d sessions", st.Len())
	}
}

func TestStore_GetUnknownID(t *testing.T) {
	st := newTestStore(0)
	if _, err := st.Get("no-such-session"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_DeleteUnknownIDIsNoOp(t *testing.T) {
	st := newTestStore(0)
	st.Delete("no-such-session")
}

func TestStore_DeleteAbortsSession(t *testing.T) {
	st := newTestStore(0)
	s := st.Create(&recordingSink{})

	st.Delete(s.ID())
	waitDone(t, s)

	if s.State() != StateClosed {
		t.Errorf("Expected deleted session to be CLOSED, got %s", s.State())
	}
}

func TestStore_ConcurrentCreatesGetUniqueIDs(t *testing.T) {
	st := newTestStore(0)

	const n = 50
	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- st.Create(&recordingSink{}).ID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("Duplicate session ID %s", id)
		}
		seen[id] = true
	}
	if st.Len() != n {
		t.Errorf("Expected %d live sessions, got %d", n, st.Len())
	}

	for id := range seen {
		st.Delete(id)
	}
}

func TestStore_ReapIdle(t *testing.T) {
	st := newTestStore(20 * time.Millisecond)

	idle := st.Create(&recordingSink{})
	active := st.Create(&recordingSink{})

	time.Sleep(40 * time.Millisecond)
	if err := active.Append([]byte("A")); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	st.reapIdle()

	if _, err := st.Get(idle.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected idle session to be reaped, got %v", err)
	}
	if _, err := st.Get(active.ID()); err != nil {
		t.Errorf("Expected active session to survive, got %v", err)
	}
	st.Delete(active.ID())
}

func TestStore_StopJanitorIsIdempotent(t *testing.T) {
	st := newTestStore(0)
	st.StartJanitor(time.Millisecond)
	st.StopJanitor()
	st.StopJanitor()
}
