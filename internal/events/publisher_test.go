package events

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPublisher_DisabledWithoutBrokers(t *testing.T) {
	p := New(Config{Topic: "encounter.notes"}, zerolog.Nop())
	defer p.Close()

	err := p.Publish(context.Background(), NoteEvent{
		EncounterID: "enc-1",
		Source:      "stream",
		Transcript:  "hello",
		Summary:     map[string]any{"subjective": []string{"hello"}},
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Publish() in log-only mode failed: %v", err)
	}
}

func TestPublisher_CloseWithoutWriter(t *testing.T) {
	p := New(Config{}, zerolog.Nop())
	if err := p.Close(); err != nil {
		t.Errorf("Close() on disabled publisher failed: %v", err)
	}
}

func TestPublisher_MarshalFailure(t *testing.T) {
	p := New(Config{Topic: "encounter.notes"}, zerolog.Nop())
	defer p.Close()

	// Channels are not JSON-serializable.
	err := p.Publish(context.Background(), NoteEvent{
		EncounterID: "enc-1",
		Summary:     make(chan int),
	})
	if err == nil {
		t.Error("Expected marshal error for unserializable summary")
	}
}
