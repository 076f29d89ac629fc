package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 90 * time.Second

// OpenAIOptions — параметры синтеза через OpenAI.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string // пусто — api.openai.com
	Model   string
	Voice   string
	// HTTPClient позволяет подменить транспорт (тесты, прокси).
	HTTPClient *http.Client
}

// OpenAISynthesizer implements Synthesizer using the OpenAI speech endpoint.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
	voice  string
	logger *zap.Logger
}

// NewOpenAISynthesizer создаёт синтезатор OpenAI.
func NewOpenAISynthesizer(opts OpenAIOptions, logger *zap.Logger) (*OpenAISynthesizer, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	if opts.Model == "" {
		opts.Model = string(openai.TTSModel1)
	}
	if opts.Voice == "" {
		opts.Voice = string(openai.VoiceAlloy)
	}
	return &OpenAISynthesizer{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
		voice:  opts.Voice,
		logger: logger,
	}, nil
}

// Model возвращает модель синтеза.
func (s *OpenAISynthesizer) Model() string { return s.model }

// Voice возвращает голос синтеза.
func (s *OpenAISynthesizer) Voice() string { return s.voice }

// Synthesize converts text to mp3 audio bytes.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) (*Audio, error) {
	// берём таймаут из ctx, иначе 90s
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}

	s.logger.Debug("openai speech request",
		zap.String("model", s.model),
		zap.String("voice", s.voice),
		zap.Int("text_length", len([]rune(text))))
	start := time.Now()

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: read audio: %v", ErrUpstream, err)
	}

	s.logger.Debug("openai speech done",
		zap.Int("audio_size", len(data)),
		zap.Duration("elapsed", time.Since(start)))

	return &Audio{Data: data, Format: "mp3"}, nil
}

// classify переводит ошибки клиента OpenAI в ошибки пакета.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: %s", ErrBadRequest, apiErr.Message)
		}
		return fmt.Errorf("%w: status %d: %s", ErrUpstream, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: %v", ErrBadRequest, reqErr)
		}
		return fmt.Errorf("%w: status %d: %v", ErrUpstream, reqErr.HTTPStatusCode, reqErr)
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
