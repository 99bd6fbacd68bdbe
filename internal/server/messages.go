package server

// ClientMessage is the discriminated record clients send over the
// streaming connection.
type ClientMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"` // base64 audio payload for audioChunk
}

// Client message types.
const (
	MsgAudioChunk = "audioChunk"
	MsgChunkEnd   = "chunkEnd"
	MsgEnd        = "end"
)

// SessionMessage is sent once on connect.
type SessionMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// PartialTranscriptMessage is sent after each chunk flush.
type PartialTranscriptMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// FinalMessage is sent at finalize, followed by connection close.
type FinalMessage struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	Summary    any    `json:"summary"`
}

// ErrorMessage is sent on any failure; the connection remains open unless
// the error is fatal.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
