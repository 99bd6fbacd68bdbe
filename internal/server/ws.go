package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mediscribe/scribe-gateway/internal/events"
	"github.com/mediscribe/scribe-gateway/internal/observability"
	"github.com/mediscribe/scribe-gateway/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks belong to the deployment's edge; the gateway
		// accepts any upgrader here.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

type outMsg struct {
	data []byte
	// last marks the terminal message; the write loop closes the
	// connection after sending it.
	last bool
}

// wsSink forwards session events to the client connection. Sends are
// non-blocking: a slow or dead client drops messages rather than stalling
// the session worker.
type wsSink struct {
	out       chan outMsg
	sessionID string
	publisher *events.Publisher
	logger    zerolog.Logger
}

func newWSSink(publisher *events.Publisher, logger zerolog.Logger) *wsSink {
	return &wsSink{
		out:       make(chan outMsg, 64),
		publisher: publisher,
		logger:    logger,
	}
}

func (s *wsSink) bind(sessionID string) {
	s.sessionID = sessionID
	s.logger = s.logger.With().Str("session_id", sessionID).Logger()
}

func (s *wsSink) send(v any, last bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal server message")
		return
	}
	select {
	case s.out <- outMsg{data: payload, last: last}:
	default:
		s.logger.Warn().Msg("outbound queue full, dropping message")
	}
}

func (s *wsSink) Session(sessionID string) {
	s.send(SessionMessage{Type: "session", SessionID: sessionID}, false)
}

func (s *wsSink) PartialTranscript(text string) {
	s.send(PartialTranscriptMessage{Type: "partialTranscript", Text: text}, false)
}

func (s *wsSink) Error(message string) {
	s.send(ErrorMessage{Type: "error", Message: message}, false)
}

func (s *wsSink) Final(transcript string, summary any) {
	s.send(FinalMessage{Type: "final", Transcript: transcript, Summary: summary}, true)

	if s.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.publisher.Publish(ctx, events.NoteEvent{
			EncounterID: s.sessionID,
			Source:      "stream",
			Transcript:  transcript,
			Summary:     summary,
			CompletedAt: time.Now().UTC(),
		})
	}
}

// HandleStream is the entry point for streaming encounter connections.
// Each connection owns one session; the read loop feeds the session state
// machine and the write loop drains server events back to the client.
func HandleStream(store *session.Store, publisher *events.Publisher, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error().Err(err).Msg("failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		connLogger := observability.WithCorrelationID("")
		sink := newWSSink(publisher, connLogger)
		sess := store.Create(sink)
		sink.bind(sess.ID())
		defer func() {
			store.Delete(sess.ID())
			// No sink sends can happen once the worker has stopped;
			// closing the channel releases the write loop.
			<-sess.Done()
			close(sink.out)
		}()

		go writeLoop(conn, sink.out, sink.logger)

		sink.Session(sess.ID())
		sink.logger.Info().Msg("streaming session opened")

		readLoop(conn, sess, sink)
		sink.logger.Info().Str("state", sess.State().String()).Msg("streaming connection closed")
	}
}

func writeLoop(conn *websocket.Conn, out <-chan outMsg, logger zerolog.Logger) {
	for msg := range out {
		if err := conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
			logger.Debug().Err(err).Msg("write failed, stopping write loop")
			return
		}
		if msg.last {
			// Final message delivered; close so the read loop unblocks.
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
			return
		}
	}
}

func readLoop(conn *websocket.Conn, sess *session.Session, sink *wsSink) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				sink.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}
		handleMessage(payload, sess, sink)
	}
}

// handleMessage is the per-message failure boundary: any error, including a
// panic inside handling, becomes an error-typed reply and never tears down
// other sessions.
func handleMessage(payload []byte, sess *session.Session, sink *wsSink) {
	defer func() {
		if rec := recover(); rec != nil {
			observability.RecordError("panic", "server")
			sink.logger.Error().Interface("panic", rec).Msg("recovered panic in message handler")
			sink.Error(fmt.Sprintf("internal error: %v", rec))
		}
	}()

	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		sink.Error("malformed message: " + err.Error())
		return
	}

	var err error
	switch msg.Type {
	case MsgAudioChunk:
		var chunk []byte
		chunk, err = base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			sink.Error("invalid base64 audio data: " + err.Error())
			return
		}
		err = sess.Append(chunk)
	case MsgChunkEnd:
		err = sess.ChunkEnd()
	case MsgEnd:
		err = sess.End()
	default:
		sink.Error(fmt.Sprintf("unknown message type %q", msg.Type))
		return
	}

	if err != nil {
		var invalid *session.InvalidTransitionError
		switch {
		case errors.As(err, &invalid):
			observability.RecordError("invalid_transition", "session")
		case errors.Is(err, session.ErrQueueFull):
			observability.RecordError("queue_full", "session")
		}
		sink.logger.Warn().Err(err).Str("message_type", msg.Type).Msg("message rejected")
		sink.Error(err.Error())
	}
}
