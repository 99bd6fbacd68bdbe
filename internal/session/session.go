package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediscribe/scribe-gateway/internal/audio"
	"github.com/mediscribe/scribe-gateway/internal/note"
	"github.com/mediscribe/scribe-gateway/internal/observability"
	"github.com/mediscribe/scribe-gateway/internal/provider"
)

// Sink receives the server-side events a session produces. The streaming
// handler implements it by writing messages to the client connection.
type Sink interface {
	PartialTranscript(text string)
	Final(transcript string, summary any)
	Error(message string)
}

// Deps are the collaborators injected into every session.
type Deps struct {
	Transcriber provider.Transcriber
	Summarizer  provider.Summarizer
	Sink        Sink
	Logger      zerolog.Logger

	// AudioMIMEType is the advisory content type passed to the transcriber.
	AudioMIMEType string
	// QueueSize bounds the number of flush units awaiting transcription.
	QueueSize int
}

type jobKind int

const (
	jobFlush jobKind = iota
	jobFinalize
)

type job struct {
	kind jobKind
	unit []byte
}

// Session holds the state of one streaming encounter. All provider calls
// run on a single per-session worker goroutine consuming a FIFO job queue,
// so flush units are transcribed strictly in arrival order and finalize
// runs only after every queued flush has completed.
type Session struct {
	id   string
	deps Deps

	buf        *audio.ChunkBuffer
	transcript *TranscriptLog

	mu             sync.Mutex
	state          State
	pendingFlushes int
	createdAt      time.Time
	lastActivity   time.Time

	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
}

const defaultQueueSize = 16

// NewSession creates a session in OPEN state and starts its worker.
func NewSession(id string, deps Deps) *Session {
	if deps.QueueSize <= 0 {
		deps.QueueSize = defaultQueueSize
	}
	if deps.AudioMIMEType == "" {
		deps.AudioMIMEType = "audio/webm"
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC()
	// Two extra queue slots so the end signal (trailing flush + finalize)
	// always has room once chunk-boundary flushes are capped.
	queueCap := deps.QueueSize + 2
	s := &Session{
		id:           id,
		deps:         deps,
		buf:          audio.NewChunkBuffer(),
		transcript:   NewTranscriptLog(),
		state:        StateOpen,
		createdAt:    now,
		lastActivity: now,
		jobs:         make(chan job, queueCap),
		ctx:          ctx,
		cancel:       cancel,
		doneCh:       make(chan struct{}),
	}

	go s.run()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns the full transcript accumulated so far.
func (s *Session) Transcript() string {
	return s.transcript.Join()
}

// LastActivity returns the time of the most recent client message.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Done is closed once the worker has exited, after finalize or abort.
func (s *Session) Done() <-chan struct{} { return s.doneCh }

// Append adds one audio fragment to the current buffer. Valid while the
// session is accumulating or a flush is in flight; a chunk arriving during
// an in-flight flush starts the next unit.
func (s *Session) Append(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked()
	if !s.state.canAppend() {
		return &InvalidTransitionError{From: s.state, Event: "audioChunk"}
	}
	if s.state == StateOpen {
		s.state = StateAccumulating
	}

	s.buf.Append(chunk)
	observability.RecordChunk(len(chunk))
	return nil
}

// ChunkEnd flushes the buffered fragments as one unit and queues it for
// transcription. An empty buffer is a no-op.
func (s *Session) ChunkEnd() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked()
	if s.state == StateOpen {
		s.state = StateAccumulating
	}
	if !s.state.canFlush() {
		return &InvalidTransitionError{From: s.state, Event: "chunkEnd"}
	}
	if s.pendingFlushes >= s.deps.QueueSize {
		return ErrQueueFull
	}

	unit := s.buf.Flush()
	if unit == nil {
		return nil
	}

	s.pendingFlushes++
	s.state = StateFlushing
	s.jobs <- job{kind: jobFlush, unit: unit}
	return nil
}

// End signals the end of the encounter. Any flush already queued is
// processed first; fragments buffered since the last chunk boundary are
// flushed as one final unit before summarization.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchLocked()
	if s.state == StateOpen {
		s.state = StateAccumulating
	}
	if !s.state.canFinalize() {
		return &InvalidTransitionError{From: s.state, Event: "end"}
	}

	if unit := s.buf.Flush(); unit != nil {
		s.pendingFlushes++
		s.jobs <- job{kind: jobFlush, unit: unit}
	}
	s.state = StateFinalizing
	s.jobs <- job{kind: jobFinalize}
	return nil
}

// Abort terminates the session without finalizing, for connection loss or
// idle timeout. In-flight provider calls are cancelled; queued work is
// discarded. Idempotent.
func (s *Session) Abort() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.cancel()
	close(s.jobs)
}

func (s *Session) touchLocked() {
	s.lastActivity = time.Now().UTC()
}

func (s *Session) run() {
	defer close(s.doneCh)

	for j := range s.jobs {
		if s.ctx.Err() != nil {
			return
		}
		switch j.kind {
		case jobFlush:
			s.handleFlush(j.unit)
		case jobFinalize:
			if s.handleFinalize() {
				return
			}
		}
	}
}

// handleFlush transcribes one unit and appends the result, or an error
// marker, to the transcript log.
func (s *Session) handleFlush(unit []byte) {
	start := time.Now()
	text, err := s.deps.Transcriber.Transcribe(s.ctx, unit, s.deps.AudioMIMEType)

	s.mu.Lock()
	s.pendingFlushes--
	if s.state == StateFlushing && s.pendingFlushes == 0 {
		s.state = StateAccumulating
	}
	s.mu.Unlock()

	if err != nil {
		observability.RecordTranscription("error", time.Since(start).Seconds())
		observability.RecordError("transcribe", "provider")
		s.deps.Logger.Error().Err(err).Int("unit_bytes", len(unit)).Msg("transcription failed")
		s.transcript.Append(Segment{Failed: true})
		s.deps.Sink.Error(err.Error())
		return
	}

	observability.RecordTranscription("success", time.Since(start).Seconds())
	s.transcript.Append(Segment{Text: text})
	s.deps.Sink.PartialTranscript(text)
}

// handleFinalize runs the terminal summarization step. Returns true when
// the session reached CLOSED and the worker should exit. A provider
// failure leaves the session in ACCUMULATING so the client can re-send
// the end signal; malformed model output still completes the finalize
// with a fallback payload.
func (s *Session) handleFinalize() bool {
	transcript := s.transcript.Join()
	prompt := note.BuildPrompt(transcript)

	start := time.Now()
	raw, err := s.deps.Summarizer.Summarize(s.ctx, prompt)
	if err != nil {
		observability.RecordSummarization("error", time.Since(start).Seconds())
		observability.RecordError("summarize", "provider")
		s.deps.Logger.Error().Err(err).Msg("summarization failed")

		s.mu.Lock()
		if s.state == StateFinalizing {
			s.state = StateAccumulating
		}
		s.mu.Unlock()

		s.deps.Sink.Error(err.Error())
		return false
	}
	observability.RecordSummarization("success", time.Since(start).Seconds())

	summary, ok := note.ParseOrFallback(raw)
	if !ok {
		observability.RecordError("malformed_model_output", "note")
		s.deps.Logger.Warn().Str("raw", raw).Msg("model output is not a valid note, returning fallback payload")
	}

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	s.cancel()

	s.deps.Sink.Final(transcript, summary)
	return true
}
