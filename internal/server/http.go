package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediscribe/scribe-gateway/internal/events"
	"github.com/mediscribe/scribe-gateway/internal/pipeline"
	"github.com/mediscribe/scribe-gateway/internal/provider"
)

// HandleBatch accepts a single complete audio upload (multipart form field
// "audio"), runs the one-shot pipeline, and responds with the transcript
// and structured note.
func HandleBatch(batch *pipeline.Batch, publisher *events.Publisher, maxUploadBytes int64, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "No audio")
			return
		}

		file, header, err := r.FormFile("audio")
		if err != nil {
			writeError(w, http.StatusBadRequest, "No audio")
			return
		}
		defer file.Close()

		audio, err := io.ReadAll(file)
		if err != nil {
			logger.Error().Err(err).Msg("failed to read upload")
			writeError(w, http.StatusBadRequest, "No audio")
			return
		}

		result, err := batch.Run(r.Context(), audio, header.Header.Get("Content-Type"))
		if err != nil {
			if errors.Is(err, pipeline.ErrNoAudio) {
				writeError(w, http.StatusBadRequest, "No audio")
				return
			}
			logger.Error().Err(err).Int("audio_bytes", len(audio)).Msg("batch pipeline failed")
			writeError(w, http.StatusInternalServerError, providerMessage(err))
			return
		}

		if publisher != nil {
			_ = publisher.Publish(r.Context(), events.NoteEvent{
				EncounterID: uuid.NewString(),
				Source:      "batch",
				Transcript:  result.Transcript,
				Summary:     result.Summary,
				CompletedAt: time.Now().UTC(),
			})
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// providerMessage surfaces the provider's own message when available.
func providerMessage(err error) string {
	var perr *provider.Error
	if errors.As(err, &perr) {
		return perr.Message
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
