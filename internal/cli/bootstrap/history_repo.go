package bootstrap

import (
	"fmt"

	"Narrator/internal/cli/repo"
	reposqlite "Narrator/internal/cli/repo/sqlite"
)

// OpenHistoryRepo открывает локальную историю по пути path и выполняет миграции.
// Репозиторий нужно закрыть после работы.
func OpenHistoryRepo(path string) (repo.HistoryRepository, error) {
	r, err := reposqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := r.Migrate(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return r, nil
}
