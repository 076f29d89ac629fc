package sqlite

import (
	"Narrator/internal/cli/model"
	"Narrator/internal/cli/repo"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// HistoryRepositorySQLite — история конвертаций в локальной БД SQLite.
type HistoryRepositorySQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ repo.HistoryRepository = (*HistoryRepositorySQLite)(nil)

// Open открывает (и создаёт при необходимости) файл БД по пути path.
func Open(path string) (*HistoryRepositorySQLite, error) {
	if path == "" {
		return nil, errors.New("empty history db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &HistoryRepositorySQLite{db: db, now: time.Now}, nil
}

// Close закрывает соединение с БД.
func (r *HistoryRepositorySQLite) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Migrate гарантирует наличие необходимых таблиц/индексов.
func (r *HistoryRepositorySQLite) Migrate() error {
	_, err := r.db.Exec(initialDDL())
	return err
}

// Add сохраняет запись и возвращает её id.
func (r *HistoryRepositorySQLite) Add(e model.HistoryEntry) (string, error) {
	if e.ConversionID == "" {
		return "", errors.New("conversion id is required")
	}
	id := uuid.NewString()
	created := e.CreatedAt
	if created == 0 {
		created = r.now().UnixNano()
	}
	_, err := r.db.Exec(`INSERT INTO history(
        id, conversion_id, source_path, output_path, audio_url, size, created_at
    ) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		id, e.ConversionID, e.SourcePath, e.OutputPath, e.AudioURL, e.Size, created,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// List возвращает записи, отсортированные по created_at DESC.
func (r *HistoryRepositorySQLite) List(limit int) ([]model.HistoryEntry, error) {
	q := `SELECT id, conversion_id, source_path, output_path, audio_url, size, created_at
   FROM history ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.ID, &e.ConversionID, &e.SourcePath, &e.OutputPath, &e.AudioURL, &e.Size, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
