package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"
)

// Migration files must come in up/down pairs and their versions must be
// contiguous from 1, so a fresh database and a rolled-back one walk the
// same ladder.
func TestMigrationFilesArePairedAndContiguous(t *testing.T) {
	migrationsDir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	type pair struct{ up, down bool }
	byVersion := map[int]*pair{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			t.Fatalf("unexpected file in migrations dir: %s", entry.Name())
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			t.Fatalf("parse version from %s: %v", entry.Name(), err)
		}
		p := byVersion[version]
		if p == nil {
			p = &pair{}
			byVersion[version] = p
		}
		switch match[2] {
		case "up":
			if p.up {
				t.Fatalf("duplicate up migration for version %d", version)
			}
			p.up = true
		case "down":
			if p.down {
				t.Fatalf("duplicate down migration for version %d", version)
			}
			p.down = true
		}
	}

	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}

	for version := 1; version <= len(byVersion); version++ {
		p := byVersion[version]
		if p == nil {
			t.Fatalf("version %d missing: versions must be contiguous from 1", version)
		}
		if !p.up {
			t.Fatalf("version %d has no up migration", version)
		}
		if !p.down {
			t.Fatalf("version %d has no down migration", version)
		}
	}
}
