package provider

import "fmt"

// Settings carries the credentials and model names needed to build
// provider clients. Populated from config at startup.
type Settings struct {
	STTProvider string

	DeepgramAPIKey   string
	DeepgramModel    string
	DeepgramLanguage string

	OpenAIAPIKey          string
	OpenAIModel           string
	OpenAITranscribeModel string
}

// NewTranscriber selects the speech-to-text backend by name.
func NewTranscriber(s Settings) (Transcriber, error) {
	switch s.STTProvider {
	case "deepgram":
		return NewDeepgramTranscriber(s.DeepgramAPIKey, s.DeepgramModel, s.DeepgramLanguage), nil
	case "openai":
		return NewOpenAIClient(s.OpenAIAPIKey, s.OpenAIModel, s.OpenAITranscribeModel), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q: supported providers are deepgram, openai", s.STTProvider)
	}
}

// NewSummarizer builds the language-model client used for note generation.
func NewSummarizer(s Settings) Summarizer {
	return NewOpenAIClient(s.OpenAIAPIKey, s.OpenAIModel, s.OpenAITranscribeModel)
}
