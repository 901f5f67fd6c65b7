package database

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Migration is one versioned pair of embedded SQL scripts.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

//go:embed migrations/*.sql
var migrationFS embed.FS

var migrations []Migration

func init() {
	loaded, err := LoadMigrations(migrationFS)
	if err != nil {
		panic(fmt.Sprintf("embedded migrations are invalid: %v", err))
	}
	migrations = loaded
}

// LoadMigrations reads NNNNNN_name.up.sql / .down.sql pairs from the migrations directory.
func LoadMigrations(efs embed.FS) ([]Migration, error) {
	entries, err := efs.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var loaded []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		base := strings.TrimSuffix(name, ".up.sql")
		versionPart, label, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s must be named <version>_<name>.up.sql", name)
		}
		version, err := strconv.Atoi(versionPart)
		if err != nil {
			return nil, fmt.Errorf("migration %s has a non-numeric version: %w", name, err)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %06d is used by both %s and %s", version, prev, name)
		}
		seen[version] = name

		upBytes, err := efs.ReadFile(path.Join("migrations", name))
		if err != nil {
			return nil, fmt.Errorf("failed to read up migration %s: %w", name, err)
		}
		downName := base + ".down.sql"
		downBytes, err := efs.ReadFile(path.Join("migrations", downName))
		if err != nil {
			return nil, fmt.Errorf("failed to read down migration %s: %w", downName, err)
		}

		loaded = append(loaded, Migration{
			Version:    version,
			Name:       label,
			UpScript:   string(upBytes),
			DownScript: string(downBytes),
		})
	}

	sort.Slice(loaded, func(i, j int) bool {
		return loaded[i].Version < loaded[j].Version
	})
	return loaded, nil
}

// GetMigrations returns the registered migrations in version order.
func GetMigrations() []Migration {
	return migrations
}

// GetMigrationByVersion finds a registered migration.
func GetMigrationByVersion(version int) *Migration {
	for i := range migrations {
		if migrations[i].Version == version {
			return &migrations[i]
		}
	}
	return nil
}

func (m *Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}
