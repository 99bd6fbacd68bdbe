package provider

import (
	"bytes"
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements both gateway capabilities against the OpenAI API:
// Whisper for transcription and chat completions for summarization.
type OpenAIClient struct {
	client          *openai.Client
	chatModel       string
	transcribeModel string
}

// NewOpenAIClient creates an OpenAI-backed provider client.
func NewOpenAIClient(apiKey, chatModel, transcribeModel string) *OpenAIClient {
	return &OpenAIClient{
		client:          openai.NewClient(apiKey),
		chatModel:       chatModel,
		transcribeModel: transcribeModel,
	}
}

func (c *OpenAIClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcribeModel,
		Reader:   bytes.NewReader(audio),
		FilePath: fileNameForMime(mimeType),
	})
	if err != nil {
		return "", NewError("openai_transcribe", err)
	}
	return resp.Text, nil
}

func (c *OpenAIClient) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", NewError("openai_summarize", err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Code: "openai_summarize", Message: "no choices in response"}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// fileNameForMime picks a synthetic upload name whose extension tells the
// API the audio container format.
func fileNameForMime(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "wav"):
		return "audio.wav"
	case strings.Contains(mimeType, "mp3"), strings.Contains(mimeType, "mpeg"):
		return "audio.mp3"
	case strings.Contains(mimeType, "ogg"):
		return "audio.ogg"
	case strings.Contains(mimeType, "mp4"), strings.Contains(mimeType, "m4a"):
		return "audio.m4a"
	default:
		return "audio.webm"
	}
}
