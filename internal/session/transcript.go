package session

import (
	"strings"
	"sync"
)

// Segment is one entry in a session's transcript log: the text returned by
// a single transcription call, or an error marker for a failed unit.
type Segment struct {
	Text   string
	Failed bool
}

// TranscriptLog is a per-session append-only ordered log of transcript
// segments. Segment order equals flush order.
type TranscriptLog struct {
	mu       sync.Mutex
	segments []Segment
}

// NewTranscriptLog creates an empty transcript log.
func NewTranscriptLog() *TranscriptLog {
	return &TranscriptLog{}
}

// Append records the result of one flush.
func (t *TranscriptLog) Append(seg Segment) {
	t.mu.Lock()
	t.segments = append(t.segments, seg)
	t.mu.Unlock()
}

// Join returns the full transcript: every successfully transcribed segment
// in flush order, space-separated and trimmed. Error markers and empty
// segments are skipped.
func (t *TranscriptLog) Join() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	parts := make([]string, 0, len(t.segments))
	for _, seg := range t.segments {
		if seg.Failed {
			continue
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Len returns the number of logged segments, error markers included.
func (t *TranscriptLog) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.segments)
}
