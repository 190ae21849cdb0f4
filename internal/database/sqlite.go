package database

import (
	"strings"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const sqliteForeignKeysPragma = "_pragma=foreign_keys(1)"

// openSQLite opens a SQLite database with foreign key enforcement turned on.
func openSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(withForeignKeys(dsn)), gormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + sqliteForeignKeysPragma
}
