package model

import "time"

// Conversion — запись преобразования в том виде, в котором её отдаёт сервер.
type Conversion struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SourceSize  int64     `json:"source_size"`
	TextLength  int       `json:"text_length"`
	Chunks      int       `json:"chunks"`
	Model       string    `json:"model"`
	Voice       string    `json:"voice"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	AudioSize   int64     `json:"audio_size"`
	Cached      bool      `json:"cached"`
	AudioURL    string    `json:"audio_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
