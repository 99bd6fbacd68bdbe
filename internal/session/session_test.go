package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediscribe/scribe-gateway/internal/note"
)

const validNoteJSON = `{"subjective":["pt reports pain"],"objective":[],"assessment":[],"plan":[],"redFlags":[]}`

type transcribeFunc func(ctx context.Context, audio []byte, mimeType string) (string, error)

func (f transcribeFunc) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return f(ctx, audio, mimeType)
}

type summarizeFunc func(ctx context.Context, prompt string) (string, error)

func (f summarizeFunc) Summarize(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type finalEvent struct {
	transcript string
	summary    any
}

type recordingSink struct {
	mu       sync.Mutex
	partials []string
	errs     []string
	finals   []finalEvent
}

func (s *recordingSink) PartialTranscript(text string) {
	s.mu.Lock()
	s.partials = append(s.partials, text)
	s.mu.Unlock()
}

func (s *recordingSink) Error(message string) {
	s.mu.Lock()
	s.errs = append(s.errs, message)
	s.mu.Unlock()
}

func (s *recordingSink) Final(transcript string, summary any) {
	s.mu.Lock()
	s.finals = append(s.finals, finalEvent{transcript: transcript, summary: summary})
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() (partials, errs []string, finals []finalEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.partials...), append([]string(nil), s.errs...), append([]finalEvent(nil), s.finals...)
}

func echoTranscriber(results map[string]string) transcribeFunc {
	return func(_ context.Context, audio []byte, _ string) (string, error) {
		return results[string(audio)], nil
	}
}

func staticSummarizer(raw string) summarizeFunc {
	return func(context.Context, string) (string, error) { return raw, nil }
}

func newTestSession(t *testing.T, tr transcribeFunc, sm summarizeFunc, sink Sink) *Session {
	t.Helper()
	return NewSession("test-session", Deps{
		Transcriber: tr,
		Summarizer:  sm,
		Sink:        sink,
		Logger:      zerolog.Nop(),
	})
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for session worker to finish")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestSession_EndToEnd(t *testing.T) {
	sink := &recordingSink{}
	s := newTestSession(t,
		echoTranscriber(map[string]string{"A": "hello"}),
		staticSummarizer(validNoteJSON),
		sink)

	if err := s.Append([]byte("A")); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := s.ChunkEnd(); err != nil {
		t.Fatalf("ChunkEnd() failed: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End() failed: %v", err)
	}
	waitDone(t, s)

	partials, errs, finals := sink.snapshot()
	if len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	if len(partials) != 1 || partials[0] != "hello" {
		t.Errorf("Expected one partial transcript 'hello', got %v", partials)
	}
	if len(finals) != 1 {
		t.Fatalf("Expected exactly one final event, got %d", len(finals))
	}
	if finals[0].transcript != "hello" {
		t.Errorf("Expected final transcript 'hello', got %q", finals[0].transcript)
	}

	n, ok := finals[0].summary.(*note.Note)
	if !ok {
		t.Fatalf("Expected *note.Note summary, got %T", finals[0].summary)
	}
	if len(n.Subjective) != 1 || n.Subjective[0] != "pt reports pain" {
		t.Errorf("Unexpected note subjective: %v", n.Subjective)
	}
	if s.State() != StateClosed {
		t.Errorf("Expected CLOSED state, got %s", s.State())
	}
}

func TestSession_BackToBackFlushesPreserveOrder(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	tr := transcribeFunc(func(_ context.Context, audio []byte, _ string) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-release
		}
		switch string(audio) {
		case "A":
			return "one", nil
		case "B":
			return "two", nil
		}
		return "", nil
	})

	sink := &recordingSink{}
	s := newTestSession(t, tr, staticSummarizer(validNoteJSON), sink)

	// Two chunk boundaries fired before the first transcription resolves.
	if err := s.Append([]byte("A")); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := s.ChunkEnd(); err != nil {
		t.Fatalf("first ChunkEnd() failed: %v", err)
	}
	if err := s.Append([]byte("B")); err != nil {
		t.Fatalf("Append() during flush failed: %v", err)
	}
	if err := s.ChunkEnd(); err != nil {
		t.Fatalf("second ChunkEnd() failed: %v", err)
	}
	close(release)

	if err := s.End(); err != nil {
		t.Fatalf("End() failed: %v", err)
	}
	waitDone(t, s)

	partials, _, finals := sink.snapshot()
	if len(partials) != 2 || partials[0] != "one" || partials[1] != "two" {
		t.Errorf("Expected partials [one two] in flush order, got %v", partials)
	}
	if len(finals) != 1 || finals[0].transcript != "one two" {
		t.Errorf("Expected final transcript 'one two', got %+v", finals)
	}
}

func TestSession_ChunkDuringFlushStartsNextUnit(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	tr := transcribeFunc(func(_ context.Context, audio []byte, _ string) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-release
		}
		return string(audio), nil
	})

	sink := &recordingSink{}
	s := newTestSession(t, tr, staticSummarizer(validNoteJSON), sink)

	if err := s.Append([]byte("A")); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := s.ChunkEnd(); err != nil {
		t.Fatalf("ChunkEnd() failed: %v", err)
	}
	if s.State() != StateFlushing {
		t.Fatalf("Expected FLUSHING state, got %s", s.State())
	}

	// Arrives while the first flush is in flight; must start a fresh unit.
	if err := s.Append([]byte("B")); err != nil {
		t.Fatalf("Append() during flush failed: %v", err)
	}
	close(release)

	if err := s.ChunkEnd(); err != nil {
		t.Fatalf("second ChunkEnd() failed: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End() failed: %v", err)
	}
	waitDone(t, s)

	partials, _, _ := sink.snapshot()
	if len(partials) != 2 || partials[0] != "A" || partials[1] != "B" {
		t.Errorf("Expected units [A B], got %v", partials)
	}
}

func TestSession_EndTwice(t *testing.T) {
	sink := &recordingSink{}
	s := newTestSession(t,
		echoTranscriber(nil),
		staticSummarizer(validNoteJSON),
		sink)

	if err := s.End(); err != nil {
		t.Fatalf("first End() failed: %v", err)
	}

	err := s.End()
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidTransitionError from second End(), got %v", err)
	}

	waitDone(t, s)
	_, _, finals := sink.snapshot()
	if len(finals) != 1 {
		t.Errorf("Expected exactly one final event, got %d", len(finals))
	}
}

func TestSession_MalformedModelOutputStillFinalizes(t *testing.T) {
	sink := &recordingSink{}
	s := newTestSession(t,
		echoTranscriber(map[string]string{"A": "hello"}),
		staticSummarizer("not json"),
		sink)

	if err := s.Append([]byte("A")); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := s.ChunkEnd(); err != nil {
		t.Fatalf("ChunkEnd() failed: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End() failed: %v", err)
	}
	waitDone(t, s)

	_, _, finals := sink.snapshot()
	if len(finals) != 1 {
		t.Fatalf("Expected one final event, got %d", len(finals))
	}
	failure, ok := finals[0].summary.(*note.ParseFailure)
	if !ok {
		t.Fatalf("Expected *note.ParseFailure summary, got %T", finals[0].summary)
	}
	if failure.Raw != "not json" {
		t.Errorf("Expected raw model output 'not json', got %q", failure.Raw)
	}
	if s.State() != StateClosed {
		t.Errorf("Expected CLOSED state, got %s", s.State())
	}
}

func TestSession_TranscribeFailureAppendsMarker(t *testing.T) {
	var calls int32
	tr := transcribeFunc(func(_ context.Context, audio []byte, _ string) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", errors.New("deepgram unavailable")
		}
		return "recovered", nil
	})

	sink := &recordingSink{}
	s := newTestSession(t, tr, staticSummarizer(validNoteJSON), sink)

	if err := s.Append([]byte("A")); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := s.ChunkEnd(); err != nil {
		t.Fatalf("ChunkEnd() failed: %v", err)
	}
	waitFor(t, func() bool {
		_, errs, _ := sink.snapshot()
		return len(errs) == 1
	})
	waitFor(t, func() bool { return s.State() == StateAccumulating })

	// The session keeps accepting work after a handled failure.
	if err := s.Append([]byte("B")); err != nil {
		t.Fatalf("Append() after failure rejected: %v", err)
	}
	if err := s.ChunkEnd(); err != nil {
		t.Fatalf("ChunkEnd() after failure rejected: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End() failed: %v", err)
	}
	waitDone(t, s)

	partials, errs, finals := sink.snapshot()
	if len(errs) != 1 {
		t.Errorf("Expected one error event, got %v", errs)
	}
	if len(partials) != 1 || partials[0] != "recovered" {
		t.Errorf("Expected partials [recovered], got %v", partials)
	}
	if len(finals) != 1 || finals[0].transcript != "recovered" {
		t.Errorf("Expected final transcript 'recovered', got %+v", finals)
	}
}

func TestSession_SummarizeFailureIsRetryable(t *testing.T) {
	var calls int32
	sm := summarizeFunc(func(context.Context, string) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", errors.New("model overloaded")
		}
		return validNoteJSON, nil
	})

	sink := &recordingSink{}
	s := newTestSession(t, echoTranscriber(nil), sm, sink)

	if err := s.End(); err != nil {
		t.Fatalf("first End() failed: %v", err)
	}
	waitFor(t, func() bool {
		_, errs, _ := sink.snapshot()
		return len(errs) == 1
	})
	waitFor(t, func() bool { return s.State() == StateAccumulating })

	if err := s.End(); err != nil {
		t.Fatalf("retried End() failed: %v", err)
	}
	waitDone(t, s)

	_, _, finals := sink.snapshot()
	if len(finals) != 1 {
		t.Errorf("Expected one final event after retry, got %d", len(finals))
	}
}

func TestSession_TrailingBufferFlushedOnEnd(t *testing.T) {
	sink := &recordingSink{}
	s := newTestSession(t,
		echoTranscriber(map[string]string{"A": "one"}),
		staticSummarizer(validNoteJSON),
		sink)

	if err := s.Append([]byte("A")); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End() failed: %v", err)
	}
	waitDone(t, s)

	partials, _, finals := sink.snapshot()
	if len(partials) != 1 || partials[0] != "one" {
		t.Errorf("Expected trailing buffer to be flushed, got partials %v", partials)
	}
	if len(finals) != 1 || finals[0].transcript != "one" {
		t.Errorf("Expected final transcript 'one', got %+v", finals)
	}
}

func TestSession_EmptyChunkEndIsNoOp(t *testing.T) {
	sink := &recordingSink{}
	s := newTestSession(t, echoTranscriber(nil), staticSummarizer(validNoteJSON), sink)

	if err := s.ChunkEnd(); err != nil {
		t.Fatalf("ChunkEnd() on empty buffer failed: %v", err)
	}
	if s.State() != StateAccumulating {
		t.Errorf("Expected ACCUMULATING state, got %s", s.State())
	}

	partials, _, _ := sink.snapshot()
	if len(partials) != 0 {
		t.Errorf("Expected no partial transcripts, got %v", partials)
	}
	s.Abort()
}

func TestSession_AppendAfterEndRejected(t *testing.T) {
	sink := &recordingSink{}
	s := newTestSession(t, echoTranscriber(nil), staticSummarizer(validNoteJSON), sink)

	if err := s.End(); err != nil {
		t.Fatalf("End() failed: %v", err)
	}

	err := s.Append([]byte("late"))
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidTransitionError, got %v", err)
	}
	waitDone(t, s)
}

func TestSession_QueueFull(t *testing.T) {
	release := make(chan struct{})
	tr := transcribeFunc(func(_ context.Context, audio []byte, _ string) (string, error) {
		<-release
		return string(audio), nil
	})

	sink := &recordingSink{}
	s := NewSession("test-session", Deps{
		Transcriber: tr,
		Summarizer:  staticSummarizer(validNoteJSON),
		Sink:        sink,
		Logger:      zerolog.Nop(),
		QueueSize:   1,
	})
	defer close(release)
	defer s.Abort()

	if err := s.Append([]byte("A")); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := s.ChunkEnd(); err != nil {
		t.Fatalf("first ChunkEnd() failed: %v", err)
	}
	if err := s.Append([]byte("B")); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := s.ChunkEnd(); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Expected ErrQueueFull, got %v", err)
	}
}

func TestSession_AbortIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	s := newTestSession(t, echoTranscriber(nil), staticSummarizer(validNoteJSON), sink)

	s.Abort()
	s.Abort()
	waitDone(t, s)

	if s.State() != StateClosed {
		t.Errorf("Expected CLOSED state after abort, got %s", s.State())
	}
	if err := s.Append([]byte("A")); err == nil {
		t.Error("Expected error appending to aborted session")
	}
}
