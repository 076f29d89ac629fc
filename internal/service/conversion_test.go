package service

import (
	"Narrator/internal/model"
	"Narrator/internal/repo"
	"Narrator/internal/tts"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Мок синтезатора
type mockSynth struct{ mock.Mock }

func (m *mockSynth) Synthesize(ctx context.Context, text string) (*tts.Audio, error) {
	args := m.Called(ctx, text)
	if v, ok := args.Get(0).(*tts.Audio); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

var _ tts.Synthesizer = (*mockSynth)(nil)

// echoSynth возвращает текст фрагмента как «аудио» и считает параллельные вызовы.
type echoSynth struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
	calls    atomic.Int32
	failOn   string
	delay    time.Duration
}

func (e *echoSynth) Synthesize(ctx context.Context, text string) (*tts.Audio, error) {
	e.calls.Add(1)
	e.mu.Lock()
	e.inFlight++
	if e.inFlight > e.maxSeen {
		e.maxSeen = e.inFlight
	}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inFlight--
		e.mu.Unlock()
	}()

	select {
	case <-time.After(e.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.failOn != "" && text == e.failOn {
		return nil, fmt.Errorf("%w: boom", tts.ErrUpstream)
	}
	return &tts.Audio{Data: []byte(text), Format: "mp3"}, nil
}

// fakeRecorder запоминает статусы преобразований.
type fakeRecorder struct {
	mu        sync.Mutex
	statuses  []string
	cacheHits int
	ttsCalls  int
	uploads   []int64
	chunks    []int
}

func (f *fakeRecorder) RecordConversion(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}
func (f *fakeRecorder) RecordTTSRequest(bool, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttsCalls++
}
func (f *fakeRecorder) RecordCacheHit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cacheHits++
}
func (f *fakeRecorder) ObserveUpload(size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, size)
}
func (f *fakeRecorder) ObserveChunks(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, n)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dial := gormsqlite.Dialector{DriverName: "sqlite", DSN: "file:" + name + "?mode=memory&cache=shared"}
	db, err := gorm.Open(dial, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(db))
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestService(t *testing.T, synth tts.Synthesizer, rec Recorder, opts Options) (*ConversionService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	if opts.Model == "" {
		opts.Model = "tts-1"
	}
	if opts.Voice == "" {
		opts.Voice = "alloy"
	}
	svc := NewConversionService(
		repo.NewConversionRepository(db),
		repo.NewBlobRepository(db),
		synth, rec, zap.NewNop(), opts,
	)
	return svc, db
}

func TestConvert_TextFile(t *testing.T) {
	synth := &mockSynth{}
	synth.On("Synthesize", mock.Anything, "hello world").
		Return(&tts.Audio{Data: []byte("mp3-bytes"), Format: "mp3"}, nil).Once()
	rec := &fakeRecorder{}
	svc, _ := newTestService(t, synth, rec, Options{ChunkSize: 4096})
	ctx := context.Background()

	res, err := svc.Convert(ctx, Upload{FileName: "a.txt", ContentType: "text/plain", Data: []byte("hello world")})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), res.Audio)
	assert.Equal(t, model.StatusCompleted, res.Conversion.Status)
	assert.Equal(t, 1, res.Conversion.Chunks)
	assert.Equal(t, 11, res.Conversion.TextLength)
	assert.NotNil(t, res.Conversion.BlobID)
	assert.False(t, res.Conversion.Cached)
	synth.AssertExpectations(t)

	// запись и аудио доступны повторно
	c, data, err := svc.Audio(ctx, res.Conversion.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", c.FileName)
	assert.Equal(t, []byte("mp3-bytes"), data)
	assert.Equal(t, []string{model.StatusCompleted}, rec.statuses)
}

func TestConvert_ChunksInOrder(t *testing.T) {
	synth := &echoSynth{delay: time.Millisecond}
	svc, _ := newTestService(t, synth, nil, Options{ChunkSize: 3, Parallelism: 4})

	res, err := svc.Convert(context.Background(), Upload{FileName: "a.txt", ContentType: "text/plain", Data: []byte("abcdefghij")})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Conversion.Chunks)
	assert.Equal(t, []byte("abcdefghij"), res.Audio)
	assert.Equal(t, int32(4), synth.calls.Load())
}

func TestConvert_ParallelismLimit(t *testing.T) {
	synth := &echoSynth{delay: 20 * time.Millisecond}
	svc, _ := newTestService(t, synth, nil, Options{ChunkSize: 1, Parallelism: 2})

	_, err := svc.Convert(context.Background(), Upload{FileName: "a.txt", ContentType: "text/plain", Data: []byte("abcdef")})
	require.NoError(t, err)
	assert.LessOrEqual(t, synth.maxSeen, 2)
}

func TestConvert_SequentialByDefault(t *testing.T) {
	synth := &echoSynth{delay: 5 * time.Millisecond}
	svc, _ := newTestService(t, synth, nil, Options{ChunkSize: 1})

	_, err := svc.Convert(context.Background(), Upload{FileName: "a.txt", ContentType: "text/plain", Data: []byte("abcd")})
	require.NoError(t, err)
	assert.Equal(t, 1, synth.maxSeen)
}

func TestConvert_UnsupportedType(t *testing.T) {
	synth := &mockSynth{}
	rec := &fakeRecorder{}
	svc, db := newTestService(t, synth, rec, Options{})

	_, err := svc.Convert(context.Background(), Upload{FileName: "a.png", ContentType: "image/png", Data: []byte{1, 2, 3}})
	assert.ErrorIs(t, err, ErrUnsupportedType)
	synth.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything)

	var count int64
	db.Model(&model.Conversion{}).Count(&count)
	assert.Zero(t, count)
	assert.Equal(t, []string{"rejected"}, rec.statuses)
	assert.Equal(t, []int64{3}, rec.uploads)
	assert.Empty(t, rec.chunks)
}

func TestConvert_EmptyText(t *testing.T) {
	synth := &mockSynth{}
	svc, _ := newTestService(t, synth, nil, Options{})
	ctx := context.Background()

	_, err := svc.Convert(ctx, Upload{FileName: "blank.txt", ContentType: "text/plain", Data: []byte("  \n\t ")})
	assert.ErrorIs(t, err, ErrEmptyText)
	synth.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything)

	// неудача сохранена в истории
	list, err := svc.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusFailed, list[0].Status)
	assert.Contains(t, list[0].Error, "empty")
}

func TestConvert_InvalidUTF8(t *testing.T) {
	svc, _ := newTestService(t, &mockSynth{}, nil, Options{})
	_, err := svc.Convert(context.Background(), Upload{FileName: "bad.txt", ContentType: "text/plain", Data: []byte{0xff, 0xfe}})
	assert.ErrorIs(t, err, ErrExtract)
}

func TestConvert_ProviderFailure(t *testing.T) {
	synth := &echoSynth{failOn: "def"}
	rec := &fakeRecorder{}
	svc, db := newTestService(t, synth, rec, Options{ChunkSize: 3})

	_, err := svc.Convert(context.Background(), Upload{FileName: "a.txt", ContentType: "text/plain", Data: []byte("abcdefghi")})
	require.Error(t, err)
	assert.ErrorIs(t, err, tts.ErrUpstream)
	assert.Contains(t, err.Error(), "chunk 2/3")

	var blobs int64
	db.Model(&model.Blob{}).Count(&blobs)
	assert.Zero(t, blobs)
	assert.Equal(t, []string{model.StatusFailed}, rec.statuses)
}

func TestConvert_BadRequestPropagates(t *testing.T) {
	synth := &mockSynth{}
	synth.On("Synthesize", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("%w: too long", tts.ErrBadRequest))
	svc, _ := newTestService(t, synth, nil, Options{})

	_, err := svc.Convert(context.Background(), Upload{FileName: "a.txt", ContentType: "text/plain", Data: []byte("text")})
	assert.ErrorIs(t, err, tts.ErrBadRequest)
}

func TestConvert_CacheReusesAudio(t *testing.T) {
	synth := &mockSynth{}
	synth.On("Synthesize", mock.Anything, "same text").
		Return(&tts.Audio{Data: []byte("audio"), Format: "mp3"}, nil).Once()
	rec := &fakeRecorder{}
	svc, _ := newTestService(t, synth, rec, Options{})
	ctx := context.Background()

	first, err := svc.Convert(ctx, Upload{FileName: "a.txt", ContentType: "text/plain", Data: []byte("same text")})
	require.NoError(t, err)
	second, err := svc.Convert(ctx, Upload{FileName: "b.txt", ContentType: "text/plain", Data: []byte("same text")})
	require.NoError(t, err)

	assert.NotEqual(t, first.Conversion.ID, second.Conversion.ID)
	assert.True(t, second.Conversion.Cached)
	assert.Equal(t, *first.Conversion.BlobID, *second.Conversion.BlobID)
	assert.Equal(t, []byte("audio"), second.Audio)
	assert.Equal(t, 1, rec.cacheHits)
	assert.Equal(t, []int64{9, 9}, rec.uploads)
	assert.Equal(t, []int{1}, rec.chunks)
	synth.AssertNumberOfCalls(t, "Synthesize", 1)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService(t, &mockSynth{}, nil, Options{})
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.Audio(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAudio_FailedConversionHasNoAudio(t *testing.T) {
	svc, _ := newTestService(t, &mockSynth{}, nil, Options{})
	ctx := context.Background()
	_, err := svc.Convert(ctx, Upload{FileName: "blank.txt", ContentType: "text/plain", Data: []byte(" ")})
	require.Error(t, err)

	list, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, _, err = svc.Audio(ctx, list[0].ID)
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestPurgeExpired(t *testing.T) {
	synth := &echoSynth{}
	svc, db := newTestService(t, synth, nil, Options{})
	ctx := context.Background()

	res, err := svc.Convert(ctx, Upload{FileName: "a.txt", ContentType: "text/plain", Data: []byte("old text")})
	require.NoError(t, err)
	// «состарим» запись
	require.NoError(t, db.Model(&model.Conversion{}).Where("id = ?", res.Conversion.ID).
		Update("created_at", time.Now().UTC().Add(-48*time.Hour)).Error)

	fresh, err := svc.Convert(ctx, Upload{FileName: "b.txt", ContentType: "text/plain", Data: []byte("new text")})
	require.NoError(t, err)

	n, err := svc.PurgeExpired(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.Get(ctx, res.Conversion.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	var blobs int64
	db.Model(&model.Blob{}).Count(&blobs)
	assert.Equal(t, int64(1), blobs)

	_, data, err := svc.Audio(ctx, fresh.Conversion.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("new text"), data)
}

func TestContentHash_DependsOnVoice(t *testing.T) {
	a := contentHash("tts-1", "alloy", "text")
	b := contentHash("tts-1", "nova", "text")
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
	assert.Equal(t, a, contentHash("tts-1", "alloy", "text"))
}

func TestConvert_CanceledContextStillRecordsFailure(t *testing.T) {
	synth := &echoSynth{delay: time.Second}
	svc, _ := newTestService(t, synth, nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Convert(ctx, Upload{FileName: "a.txt", ContentType: "text/plain", Data: []byte("text")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	list, err := svc.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusFailed, list[0].Status)
}

// failingConversions роняет сохранение записей, для которых fail вернёт true.
type failingConversions struct {
	repo.ConversionRepository
	fail func(c *model.Conversion) bool
}

func (f *failingConversions) Create(ctx context.Context, c *model.Conversion) error {
	if f.fail(c) {
		return errors.New("db down")
	}
	return f.ConversionRepository.Create(ctx, c)
}

func (f *failingConversions) CreateSharingBlob(ctx context.Context, c *model.Conversion) error {
	if f.fail(c) {
		return errors.New("db down")
	}
	return f.ConversionRepository.CreateSharingBlob(ctx, c)
}

func newServiceWithFailingSaves(t *testing.T, synth tts.Synthesizer, rec Recorder, fail func(c *model.Conversion) bool) (*ConversionService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewConversionService(
		&failingConversions{ConversionRepository: repo.NewConversionRepository(db), fail: fail},
		repo.NewBlobRepository(db),
		synth, rec, zap.NewNop(), Options{Model: "tts-1", Voice: "alloy"},
	)
	return svc, db
}

func TestConvert_CachedSaveFailureFallsBackToFreshSynthesis(t *testing.T) {
	synth := &echoSynth{}
	rec := &fakeRecorder{}
	svc, db := newServiceWithFailingSaves(t, synth, rec, func(c *model.Conversion) bool { return c.Cached })
	ctx := context.Background()

	_, err := svc.Convert(ctx, Upload{FileName: "a.txt", ContentType: "text/plain", Data: []byte("same text")})
	require.NoError(t, err)
	second, err := svc.Convert(ctx, Upload{FileName: "b.txt", ContentType: "text/plain", Data: []byte("same text")})
	require.NoError(t, err)

	assert.False(t, second.Conversion.Cached)
	assert.Equal(t, int32(2), synth.calls.Load())
	assert.Zero(t, rec.cacheHits)

	stored, err := svc.Get(ctx, second.Conversion.ID)
	require.NoError(t, err)
	assert.False(t, stored.Cached)
	assert.Equal(t, second.Conversion.AudioSize, stored.AudioSize)

	var blobs int64
	db.Model(&model.Blob{}).Count(&blobs)
	assert.Equal(t, int64(2), blobs)
}

func TestConvert_SaveFailureRemovesAudioAndRecordsFailure(t *testing.T) {
	rec := &fakeRecorder{}
	svc, db := newServiceWithFailingSaves(t, &echoSynth{}, rec, func(c *model.Conversion) bool {
		return c.Status == model.StatusCompleted
	})
	ctx := context.Background()

	_, err := svc.Convert(ctx, Upload{FileName: "a.txt", ContentType: "text/plain", Data: []byte("text")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save conversion: db down")

	var blobs int64
	db.Model(&model.Blob{}).Count(&blobs)
	assert.Zero(t, blobs)

	list, err := svc.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusFailed, list[0].Status)
	assert.Nil(t, list[0].BlobID)
	assert.Contains(t, list[0].Error, "db down")
	assert.Equal(t, []string{model.StatusFailed}, rec.statuses)
}
