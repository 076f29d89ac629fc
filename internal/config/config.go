package config

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	defaultBaseURL        = "localhost:8000"
	defaultSQLitePath     = "narrator.db"
	defaultTTSModel       = "tts-1"
	defaultTTSVoice       = "alloy"
	defaultChunkSize      = 4096
	defaultUploadMaxMB    = 100
	defaultAllowedOrigins = "http://localhost:4200"
	defaultLinkSecret     = "dev-link-secret"
	defaultLinkTTL        = time.Hour
	defaultRetention      = 24 * time.Hour
)

type Config struct {
	// Server-side settings
	DatabaseDSN    string        `env:"DATABASE_URI"`
	SQLitePath     string        `env:"SQLITE_PATH"`
	OpenAIAPIKey   string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string        `env:"OPENAI_BASE_URL"`
	TTSModel       string        `env:"TTS_MODEL"`
	TTSVoice       string        `env:"TTS_VOICE"`
	ChunkSize      int           `env:"CHUNK_SIZE"`
	TTSParallelism int           `env:"TTS_PARALLELISM"`
	UploadMaxMB    int           `env:"UPLOAD_MAX_MB"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	LinkSecret     string        `env:"LINK_SECRET"`
	LinkTTL        time.Duration `env:"LINK_TTL"`
	Retention      time.Duration `env:"RETENTION"`
	LogLevel       string        `env:"LOG_LEVEL"`

	// Shared settings: сервер слушает по TLS, клиент ходит по https
	BaseURL     string `env:"BASE_URL"`
	EnableHTTPS bool   `env:"ENABLE_HTTPS"`
	TLSCertFile string `env:"TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TLS_KEY_FILE"`

	// Client-side settings
	ServerURL     string `env:"-"`
	OutputDir     string `env:"OUTPUT_DIR"`
	HistoryDBPath string `env:"HISTORY_DB_PATH"`
	Version       bool   `env:"-"` // show client version and exit (flag only)
}

// ErrTLSFilesRequired — HTTPS включён, но сертификат или ключ не указаны.
var ErrTLSFilesRequired = errors.New("https enabled: both TLS cert and key files are required")

var hostPortRe = regexp.MustCompile(`^[A-Za-z0-9\.\-]+:\d{1,5}$`)

func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	_ = env.Parse(cfg)

	origins := strings.Join(cfg.AllowedOrigins, ",")

	// Server flags
	flag.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "postgres DSN (empty selects SQLite)")
	flag.StringVar(&cfg.SQLitePath, "sqlite", cfg.SQLitePath, "path to server SQLite DB")
	flag.StringVar(&cfg.TTSModel, "model", cfg.TTSModel, "OpenAI speech model")
	flag.StringVar(&cfg.TTSVoice, "voice", cfg.TTSVoice, "OpenAI speech voice")
	flag.IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "max characters per TTS request")
	flag.IntVar(&cfg.TTSParallelism, "parallel", cfg.TTSParallelism, "max concurrent TTS requests per upload")
	flag.IntVar(&cfg.UploadMaxMB, "upload-max-mb", cfg.UploadMaxMB, "max upload size in MB")
	flag.StringVar(&origins, "origins", origins, "comma separated CORS origins")
	flag.DurationVar(&cfg.LinkTTL, "link-ttl", cfg.LinkTTL, "lifetime of audio download links")
	flag.DurationVar(&cfg.Retention, "retention", cfg.Retention, "how long stored audio is kept")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	// Shared/client flags
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "address of the server (host:port)")
	flag.BoolVar(&cfg.EnableHTTPS, "https", cfg.EnableHTTPS, "serve TLS (server) / use https scheme (client)")
	flag.StringVar(&cfg.TLSCertFile, "tls-cert", cfg.TLSCertFile, "TLS certificate file (server, with -https)")
	flag.StringVar(&cfg.TLSKeyFile, "tls-key", cfg.TLSKeyFile, "TLS private key file (server, with -https)")
	// Client flags
	flag.StringVar(&cfg.OutputDir, "out-dir", cfg.OutputDir, "directory for converted audio (client)")
	flag.StringVar(&cfg.HistoryDBPath, "history-db", cfg.HistoryDBPath, "path to client history SQLite DB")
	flag.BoolVar(&cfg.Version, "version", cfg.Version, "Show client version and exit")

	flag.Parse()

	cfg.AllowedOrigins = splitList(origins)
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = defaultSQLitePath
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = defaultTTSModel
	}
	if cfg.TTSVoice == "" {
		cfg.TTSVoice = defaultTTSVoice
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.TTSParallelism <= 0 {
		cfg.TTSParallelism = 1
	}
	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = defaultUploadMaxMB
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigins}
	}
	if cfg.LinkSecret == "" {
		cfg.LinkSecret = defaultLinkSecret
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = defaultLinkTTL
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	// BaseURL должен быть вида "host:port" (без схемы и пути), иначе берём дефолт
	if !hostPortRe.MatchString(cfg.BaseURL) {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.EnableHTTPS {
		cfg.ServerURL = "https://" + cfg.BaseURL
	} else {
		cfg.ServerURL = "http://" + cfg.BaseURL
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.HistoryDBPath == "" {
		home, _ := os.UserHomeDir()
		cfg.HistoryDBPath = filepath.Join(home, ".narrator", "history.db")
	}
}

// TLSFiles возвращает сертификат и ключ для сервера. Без HTTPS — пустые строки.
func (cfg *Config) TLSFiles() (cert, key string, err error) {
	if !cfg.EnableHTTPS {
		return "", "", nil
	}
	if cfg.TLSCertFile == "" || cfg.TLSKeyFile == "" {
		return "", "", ErrTLSFilesRequired
	}
	return cfg.TLSCertFile, cfg.TLSKeyFile, nil
}

// UploadMaxBytes — лимит размера загружаемого файла в байтах.
func (cfg *Config) UploadMaxBytes() int64 {
	return int64(cfg.UploadMaxMB) * 1024 * 1024
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
