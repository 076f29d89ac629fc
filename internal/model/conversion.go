package model

import "time"

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Conversion — запись об одном преобразовании файла в речь.
type Conversion struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	FileName    string `gorm:"not null" json:"file_name"`
	ContentType string `gorm:"not null" json:"content_type"`
	SourceSize  int64  `json:"source_size"`
	TextLength  int    `json:"text_length"`
	Chunks      int    `json:"chunks"`

	Model string `json:"model"`
	Voice string `json:"voice"`

	// ContentHash — ключ кэша: одинаковый текст с той же моделью и голосом
	// переиспользует уже синтезированное аудио.
	ContentHash string `gorm:"index" json:"content_hash,omitempty"`

	BlobID *string `gorm:"type:uuid;index" json:"blob_id,omitempty"`
	Blob   *Blob   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`

	Status    string `gorm:"not null;index" json:"status"`
	Error     string `json:"error,omitempty"`
	AudioSize int64  `json:"audio_size"`
	Cached    bool   `json:"cached"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
