// Package tts синтезирует речь из текста.
package tts

import (
	"context"
	"errors"
)

var (
	// ErrBadRequest — провайдер отклонил запрос (слишком длинный текст, неверный голос и т.п.).
	ErrBadRequest = errors.New("tts provider rejected request")
	// ErrUpstream — любая другая ошибка провайдера или сети.
	ErrUpstream = errors.New("tts provider failed")
)

// Audio is raw synthesized voice.
type Audio struct {
	Data   []byte
	Format string // e.g. "mp3"
}

// Synthesizer converts text to Audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Audio, error)
}
