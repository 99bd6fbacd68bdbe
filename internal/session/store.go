package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediscribe/scribe-gateway/internal/observability"
	"github.com/mediscribe/scribe-gateway/internal/provider"
)

// Store owns every live session. Access to different sessions never
// blocks; create and delete are atomic on the backing map. Sessions
// abandoned by their client are reaped after an idle timeout.
type Store struct {
	transcriber provider.Transcriber
	summarizer  provider.Summarizer
	logger      zerolog.Logger

	audioMIMEType string
	queueSize     int
	idleTimeout   time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session

	stopJanitor chan struct{}
	janitorOnce sync.Once
}

// StoreConfig tunes session behavior shared by all sessions.
type StoreConfig struct {
	AudioMIMEType string
	QueueSize     int
	IdleTimeout   time.Duration
}

const defaultIdleTimeout = 5 * time.Minute

// NewStore creates an empty session store.
func NewStore(transcriber provider.Transcriber, summarizer provider.Summarizer, cfg StoreConfig, logger zerolog.Logger) *Store {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	return &Store{
		transcriber:   transcriber,
		summarizer:    summarizer,
		logger:        logger,
		audioMIMEType: cfg.AudioMIMEType,
		queueSize:     cfg.QueueSize,
		idleTimeout:   cfg.IdleTimeout,
		sessions:      make(map[string]*Session),
		stopJanitor:   make(chan struct{}),
	}
}

// Create registers a new session bound to the given sink and returns it.
// Identifiers come from a collision-resistant source, so concurrent
// creates never collide.
func (st *Store) Create(sink Sink) *Session {
	id := uuid.NewString()
	s := NewSession(id, Deps{
		Transcriber:   st.transcriber,
		Summarizer:    st.summarizer,
		Sink:          sink,
		Logger:        st.logger.With().Str("session_id", id).Logger(),
		AudioMIMEType: st.audioMIMEType,
		QueueSize:     st.queueSize,
	})

	st.mu.Lock()
	st.sessions[id] = s
	st.mu.Unlock()

	observability.SessionStarted()
	return s
}

// Get looks up a session by ID. Returns ErrNotFound for unknown or
// deleted identifiers.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete removes a session from the store and aborts any in-flight work.
// Deleting an unknown ID is a no-op.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
	}
	st.mu.Unlock()

	if !ok {
		return
	}
	s.Abort()
	observability.SessionEnded()
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// StartJanitor launches the background reaper that deletes sessions idle
// longer than the configured timeout. Call StopJanitor on shutdown.
func (st *Store) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				st.reapIdle()
			case <-st.stopJanitor:
				return
			}
		}
	}()
}

// StopJanitor halts the background reaper. Idempotent.
func (st *Store) StopJanitor() {
	st.janitorOnce.Do(func() { close(st.stopJanitor) })
}

func (st *Store) reapIdle() {
	cutoff := time.Now().UTC().Add(-st.idleTimeout)

	st.mu.RLock()
	expired := make([]string, 0)
	for id, s := range st.sessions {
		if s.LastActivity().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	st.mu.RUnlock()

	for _, id := range expired {
		st.logger.Info().Str("session_id", id).Dur("idle_timeout", st.idleTimeout).Msg("reaping idle session")
		observability.RecordError("idle_timeout", "session")
		st.Delete(id)
	}
}
