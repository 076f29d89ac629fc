package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics содержит все метрики сервиса
type Metrics struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// Счетчики
	conversions *prometheus.CounterVec
	ttsRequests *prometheus.CounterVec
	cacheHits   prometheus.Counter

	// Гистограммы
	ttsDuration prometheus.Histogram
	uploadBytes prometheus.Histogram
	chunks      prometheus.Histogram
}

// New создает новый экземпляр метрик на собственном реестре
func New(logger *zap.Logger) *Metrics {
	m := &Metrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),

		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conversions_total",
				Help: "Количество преобразований файлов в речь",
			},
			[]string{"status"}, // completed, failed, rejected
		),

		ttsRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tts_requests_total",
				Help: "Количество запросов к TTS провайдеру",
			},
			[]string{"status"}, // success, failed
		),

		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Преобразования, обслуженные из ранее синтезированного аудио",
			},
		),

		ttsDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tts_request_duration_seconds",
				Help:    "Время ответа TTS провайдера в секундах",
				Buckets: prometheus.DefBuckets,
			},
		),

		uploadBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "upload_bytes",
				Help:    "Размер загруженных файлов",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB .. 256MB
			},
		),

		chunks: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "conversion_chunks",
				Help:    "Количество фрагментов текста на одно преобразование",
				Buckets: []float64{1, 2, 3, 5, 10, 20, 50, 100},
			},
		),
	}

	m.registry.MustRegister(
		m.conversions,
		m.ttsRequests,
		m.cacheHits,
		m.ttsDuration,
		m.uploadBytes,
		m.chunks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RecordConversion записывает итог преобразования
func (m *Metrics) RecordConversion(status string) {
	m.conversions.WithLabelValues(status).Inc()
	m.logger.Debug("conversion recorded", zap.String("status", status))
}

// RecordTTSRequest записывает запрос к TTS провайдеру
func (m *Metrics) RecordTTSRequest(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "failed"
	}
	m.ttsRequests.WithLabelValues(status).Inc()
	m.ttsDuration.Observe(seconds)
}

// RecordCacheHit учитывает повторное использование аудио
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Inc()
}

// ObserveUpload записывает размер каждой загрузки, включая отклонённые
func (m *Metrics) ObserveUpload(size int64) {
	m.uploadBytes.Observe(float64(size))
}

// ObserveChunks записывает количество фрагментов, отправленных на синтез
func (m *Metrics) ObserveChunks(n int) {
	m.chunks.Observe(float64(n))
}

// Registry отдаёт реестр (для тестов и дополнительных коллекторов)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler возвращает HTTP handler для метрик
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
