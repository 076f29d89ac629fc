package model

import "time"

// Серверная модель Blob — синтезированное аудио целиком.
type Blob struct {
	ID string `gorm:"primaryKey;type:uuid"`

	Data   []byte `gorm:"not null"`
	Format string `gorm:"not null;default:mp3"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}
