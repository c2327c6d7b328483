package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const MigrationsDir = "db/migrations"

// MigrateUp applies every pending SQL migration in dir. It returns
// applied=false when the schema was already current.
func MigrateUp(databaseURL, dir string) (applied bool, err error) {
	if databaseURL == "" {
		return false, errors.New("DATABASE_URL is not set")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}
	m, err := migrate.New("file://"+filepath.ToSlash(abs), databaseURL)
	if err != nil {
		return false, fmt.Errorf("migration setup failed: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateMigration writes an empty up/down pair named after now and name.
// Existing files are never overwritten.
func CreateMigration(dir, name string, now time.Time) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", errors.New("migration name is required")
	}
	if strings.ContainsAny(name, " /\\") {
		return "", "", errors.New("migration name must not contain spaces or slashes")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create migrations dir: %w", err)
	}
	base := fmt.Sprintf("%s_%s", now.UTC().Format("20060102150405"), name)
	upPath := filepath.Join(dir, base+".up.sql")
	downPath := filepath.Join(dir, base+".down.sql")
	if err := writeNewFile(upPath, "-- up migration: "+name+"\n"); err != nil {
		return "", "", err
	}
	if err := writeNewFile(downPath, "-- down migration: "+name+"\n"); err != nil {
		return "", "", err
	}
	return upPath, downPath, nil
}

func writeNewFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
