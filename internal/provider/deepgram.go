package provider

import (
	"bytes"
	"context"

	listenv1rest "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// DeepgramTranscriber transcribes complete audio units using Deepgram's
// pre-recorded REST API. Each flush unit is one request.
type DeepgramTranscriber struct {
	client   *listenv1rest.Client
	model    string
	language string
}

// NewDeepgramTranscriber creates a Deepgram REST transcription client.
func NewDeepgramTranscriber(apiKey, model, language string) *DeepgramTranscriber {
	rest := listenClient.NewREST(apiKey, &interfaces.ClientOptions{})
	return &DeepgramTranscriber{
		client:   listenv1rest.New(rest),
		model:    model,
		language: language,
	}
}

// Transcribe sends one audio unit to Deepgram and returns the best
// alternative's transcript. The mimeType is advisory; Deepgram sniffs the
// container format from the payload.
func (d *DeepgramTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Language:    d.language,
		SmartFormat: true,
		Punctuate:   true,
	}

	resp, err := d.client.FromStream(ctx, bytes.NewReader(audio), options)
	if err != nil {
		return "", NewError("deepgram_transcribe", err)
	}

	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return resp.Results.Channels[0].Alternatives[0].Transcript, nil
}
