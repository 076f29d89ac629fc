package model

// HistoryEntry — запись локальной истории успешных преобразований.
type HistoryEntry struct {
	ID           string
	ConversionID string
	SourcePath   string
	OutputPath   string
	AudioURL     string
	Size         int64
	CreatedAt    int64
}
