package repo

import "Narrator/internal/cli/model"

// HistoryRepository — локальная история конвертаций CLI.
type HistoryRepository interface {
	Add(e model.HistoryEntry) (string, error)
	// List возвращает записи от новых к старым; limit <= 0 — без ограничения.
	List(limit int) ([]model.HistoryEntry, error)
	Close() error
}
