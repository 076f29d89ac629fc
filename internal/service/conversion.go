package service

import (
	"Narrator/internal/audio"
	"Narrator/internal/extract"
	"Narrator/internal/model"
	"Narrator/internal/repo"
	"Narrator/internal/tts"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrUnsupportedType = extract.ErrUnsupportedType
	ErrExtract         = extract.ErrExtract
	ErrEmptyText       = errors.New("the file is empty or contains no text")
	ErrNotFound        = errors.New("conversion not found")
	ErrNoAudio         = errors.New("conversion has no audio")
)

// Recorder — метрики, которые обновляет сервис.
type Recorder interface {
	RecordConversion(status string)
	RecordTTSRequest(success bool, seconds float64)
	RecordCacheHit()
	ObserveUpload(size int64)
	ObserveChunks(n int)
}

// Options — параметры синтеза.
type Options struct {
	Model       string
	Voice       string
	ChunkSize   int
	Parallelism int
}

// Upload — загруженный пользователем файл.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Result — итог преобразования: запись и готовое аудио.
type Result struct {
	Conversion *model.Conversion
	Audio      []byte
}

// ConversionService превращает документы в речь и хранит результаты.
type ConversionService struct {
	conversions repo.ConversionRepository
	blobs       repo.BlobRepository
	synth       tts.Synthesizer
	metrics     Recorder
	logger      *zap.Logger
	opts        Options

	newID func() string
}

func NewConversionService(
	conversions repo.ConversionRepository,
	blobs repo.BlobRepository,
	synth tts.Synthesizer,
	metrics Recorder,
	logger *zap.Logger,
	opts Options,
) *ConversionService {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &ConversionService{
		conversions: conversions,
		blobs:       blobs,
		synth:       synth,
		metrics:     metrics,
		logger:      logger,
		opts:        opts,
		newID:       func() string { return uuid.NewString() },
	}
}

// Convert извлекает текст из файла, синтезирует речь по фрагментам и сохраняет результат.
func (s *ConversionService) Convert(ctx context.Context, u Upload) (*Result, error) {
	s.metrics.ObserveUpload(int64(len(u.Data)))
	contentType := extract.Detect(u.ContentType, head(u.Data))
	if !extract.Supported(contentType) {
		s.metrics.RecordConversion("rejected")
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}

	conv := &model.Conversion{
		ID:          s.newID(),
		FileName:    u.FileName,
		ContentType: contentType,
		SourceSize:  int64(len(u.Data)),
		Model:       s.opts.Model,
		Voice:       s.opts.Voice,
	}
	log := s.logger.With(zap.String("conversion_id", conv.ID), zap.String("file", u.FileName))

	text, err := extract.Text(contentType, u.Data)
	if err != nil {
		return nil, s.fail(ctx, log, conv, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, s.fail(ctx, log, conv, ErrEmptyText)
	}
	conv.TextLength = utf8.RuneCountInString(text)
	conv.ContentHash = contentHash(s.opts.Model, s.opts.Voice, text)

	if res, ok := s.fromCache(ctx, log, conv); ok {
		return res, nil
	}

	chunks := SplitChunks(text, s.opts.ChunkSize)
	conv.Chunks = len(chunks)
	s.metrics.ObserveChunks(conv.Chunks)
	log.Info("synthesizing",
		zap.String("content_type", contentType),
		zap.Int("text_length", conv.TextLength),
		zap.Int("chunks", conv.Chunks))

	parts, err := s.synthesizeAll(ctx, chunks)
	if err != nil {
		return nil, s.fail(ctx, log, conv, err)
	}
	joined := audio.JoinMP3(parts...)

	blobID := s.newID()
	created, err := s.blobs.CreateIfAbsent(ctx, blobID, joined, "mp3")
	if err != nil {
		return nil, s.fail(ctx, log, conv, fmt.Errorf("store audio: %w", err))
	}
	conv.BlobID = &blobID
	conv.AudioSize = int64(len(joined))
	conv.Status = model.StatusCompleted
	if err := s.conversions.Create(ctx, conv); err != nil {
		// без записи blob никто не соберёт при очистке
		if created {
			if _, derr := s.blobs.Delete(context.WithoutCancel(ctx), []string{blobID}); derr != nil {
				log.Error("delete unreferenced audio", zap.String("blob_id", blobID), zap.Error(derr))
			}
		}
		conv.BlobID = nil
		conv.AudioSize = 0
		return nil, s.fail(ctx, log, conv, fmt.Errorf("save conversion: %w", err))
	}

	s.metrics.RecordConversion(model.StatusCompleted)
	log.Info("conversion completed", zap.Int64("audio_size", conv.AudioSize))
	return &Result{Conversion: conv, Audio: joined}, nil
}

// fromCache переиспользует аудио ранее выполненного преобразования с тем же ключом.
func (s *ConversionService) fromCache(ctx context.Context, log *zap.Logger, conv *model.Conversion) (*Result, bool) {
	prev, err := s.conversions.FindCompletedByHash(ctx, conv.ContentHash)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("cache lookup failed", zap.Error(err))
		}
		return nil, false
	}
	blob, err := s.blobs.Get(ctx, *prev.BlobID)
	if err != nil {
		log.Warn("cached audio unavailable", zap.String("blob_id", *prev.BlobID), zap.Error(err))
		return nil, false
	}

	// conv не трогаем, пока запись не сохранена: при неудаче идёт обычный синтез
	hit := *conv
	hit.BlobID = prev.BlobID
	hit.Chunks = prev.Chunks
	hit.AudioSize = int64(len(blob.Data))
	hit.Cached = true
	hit.Status = model.StatusCompleted
	if err := s.conversions.CreateSharingBlob(ctx, &hit); err != nil {
		log.Warn("save cached conversion failed", zap.Error(err))
		return nil, false
	}
	*conv = hit

	s.metrics.RecordCacheHit()
	s.metrics.RecordConversion(model.StatusCompleted)
	log.Info("conversion served from cache", zap.String("source_id", prev.ID))
	return &Result{Conversion: conv, Audio: blob.Data}, true
}

// synthesizeAll синтезирует фрагменты с ограниченным параллелизмом, сохраняя порядок.
// Первая ошибка отменяет оставшиеся запросы.
func (s *ConversionService) synthesizeAll(ctx context.Context, chunks []string) ([][]byte, error) {
	parts := make([][]byte, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			start := time.Now()
			a, err := s.synth.Synthesize(gctx, chunk)
			s.metrics.RecordTTSRequest(err == nil, time.Since(start).Seconds())
			if err != nil {
				return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
			}
			parts[i] = a.Data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

// fail сохраняет неудачное преобразование и возвращает исходную ошибку.
func (s *ConversionService) fail(ctx context.Context, log *zap.Logger, conv *model.Conversion, cause error) error {
	conv.Status = model.StatusFailed
	conv.Error = cause.Error()
	s.metrics.RecordConversion(model.StatusFailed)
	log.Warn("conversion failed", zap.Error(cause))

	// запись о сбое сохраняем даже если клиент уже отключился
	if err := s.conversions.Create(context.WithoutCancel(ctx), conv); err != nil {
		log.Error("save failed conversion", zap.Error(err))
	}
	return cause
}

// Get возвращает запись преобразования.
func (s *ConversionService) Get(ctx context.Context, id string) (*model.Conversion, error) {
	c, err := s.conversions.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return c, err
}

// Audio возвращает запись и сохранённое аудио.
func (s *ConversionService) Audio(ctx context.Context, id string) (*model.Conversion, []byte, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if c.BlobID == nil {
		return c, nil, ErrNoAudio
	}
	b, err := s.blobs.Get(ctx, *c.BlobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c, nil, ErrNoAudio
	}
	if err != nil {
		return c, nil, err
	}
	return c, b.Data, nil
}

// List возвращает последние преобразования.
func (s *ConversionService) List(ctx context.Context, limit int) ([]model.Conversion, error) {
	return s.conversions.ListRecent(ctx, limit)
}

// PurgeExpired удаляет преобразования старше before и их осиротевшее аудио.
func (s *ConversionService) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	n, blobs, err := s.conversions.DeleteOlderThan(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("purge conversions: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired conversions purged", zap.Int64("conversions", n), zap.Int64("blobs", blobs))
	}
	return n, nil
}

func contentHash(modelName, voice, text string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(modelName))
	h.Write([]byte{0})
	h.Write([]byte(voice))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// head — начало файла для определения типа по содержимому.
func head(b []byte) []byte {
	const n = 3072
	if len(b) > n {
		return b[:n]
	}
	return b
}

type nopRecorder struct{}

func (nopRecorder) RecordConversion(string)        {}
func (nopRecorder) RecordTTSRequest(bool, float64) {}
func (nopRecorder) RecordCacheHit()                {}
func (nopRecorder) ObserveUpload(int64)            {}
func (nopRecorder) ObserveChunks(int)              {}
