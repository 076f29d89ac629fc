package repo

import (
	"Narrator/internal/model"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// InitDB открывает БД и применяет миграции моделей.
// Если dsn задан — используется Postgres, иначе SQLite-файл sqlitePath (драйвер modernc.org/sqlite).
func InitDB(dsn, sqlitePath string) (*gorm.DB, error) {
	var dial gorm.Dialector
	if dsn != "" {
		dial = postgres.Open(dsn)
	} else {
		dial = gormsqlite.Dialector{DriverName: "sqlite", DSN: sqliteDSN(sqlitePath)}
	}

	db, err := gorm.Open(dial, gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate создаёт/обновляет таблицы для всех моделей сервиса.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Blob{}, &model.Conversion{}); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// время храним в UTC: SQLite сравнивает даты как строки
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

func sqliteDSN(path string) string {
	// внешние ключи в SQLite выключены по умолчанию
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
