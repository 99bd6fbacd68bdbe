// Package pipeline implements the one-shot transcribe-then-summarize path.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/mediscribe/scribe-gateway/internal/note"
	"github.com/mediscribe/scribe-gateway/internal/observability"
	"github.com/mediscribe/scribe-gateway/internal/provider"
)

// ErrNoAudio is returned when the uploaded payload is empty or missing.
var ErrNoAudio = errors.New("no audio")

// Result is the output of one batch run: the full transcript and the
// structured note, or the parse-failure fallback payload.
type Result struct {
	Transcript string `json:"transcript"`
	Summary    any    `json:"summary"`
}

// Batch composes the two provider calls for the non-streaming path. It is
// stateless; one value serves all requests.
type Batch struct {
	transcriber provider.Transcriber
	summarizer  provider.Summarizer
}

// NewBatch creates a batch pipeline over the given providers.
func NewBatch(transcriber provider.Transcriber, summarizer provider.Summarizer) *Batch {
	return &Batch{transcriber: transcriber, summarizer: summarizer}
}

// Run transcribes one complete audio payload and summarizes the result.
// Provider failures propagate; malformed model output does not, and yields
// the fallback summary payload instead.
func (b *Batch) Run(ctx context.Context, audio []byte, mimeType string) (*Result, error) {
	if len(audio) == 0 {
		return nil, ErrNoAudio
	}
	observability.RecordBatchAudio(len(audio))

	start := time.Now()
	transcript, err := b.transcriber.Transcribe(ctx, audio, mimeType)
	if err != nil {
		observability.RecordTranscription("error", time.Since(start).Seconds())
		observability.RecordBatch("error")
		return nil, err
	}
	observability.RecordTranscription("success", time.Since(start).Seconds())

	start = time.Now()
	raw, err := b.summarizer.Summarize(ctx, note.BuildPrompt(transcript))
	if err != nil {
		observability.RecordSummarization("error", time.Since(start).Seconds())
		observability.RecordBatch("error")
		return nil, err
	}
	observability.RecordSummarization("success", time.Since(start).Seconds())

	summary, ok := note.ParseOrFallback(raw)
	if !ok {
		observability.RecordError("malformed_model_output", "note")
	}

	observability.RecordBatch("success")
	return &Result{Transcript: transcript, Summary: summary}, nil
}
