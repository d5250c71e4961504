// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package testdb hands out migrated SQLite databases to tests. Migrations run
// once per key into a template file which every test then copies.
package testdb

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/autobrr/janitor/internal/database"
)

type template struct {
	once sync.Once
	path string
	err  error
}

var (
	mu        sync.Mutex
	templates = map[string]*template{}

	unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

// Open returns a migrated database private to t, closed on cleanup.
func Open(t *testing.T, key string) *database.DB {
	t.Helper()

	db, err := database.New(PathFromTemplate(t, key, key+".db"))
	if err != nil {
		t.Fatalf("open test database %q: %v", key, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// PathFromTemplate copies the migrated template for key to a file named
// filename in a per-test temp dir and returns its path.
func PathFromTemplate(t *testing.T, key, filename string) string {
	t.Helper()

	tpl := templateFor(key)
	tpl.once.Do(func() {
		tpl.path, tpl.err = migrateTemplate(key)
	})
	if tpl.err != nil {
		t.Fatalf("prepare test database template %q: %v", key, tpl.err)
	}

	dst := filepath.Join(t.TempDir(), filename)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := copyIfExists(tpl.path+suffix, dst+suffix); err != nil {
			t.Fatalf("copy test database template %q: %v", key, err)
		}
	}
	return dst
}

func templateFor(key string) *template {
	mu.Lock()
	defer mu.Unlock()

	tpl, ok := templates[key]
	if !ok {
		tpl = &template{}
		templates[key] = tpl
	}
	return tpl
}

func migrateTemplate(key string) (string, error) {
	name := unsafeKeyChars.ReplaceAllString(key, "-")
	if name == "" || name == "-" {
		name = "testdb"
	}

	dir, err := os.MkdirTemp("", "janitor-"+name+"-template-")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, "template.db")
	db, err := database.New(path)
	if err != nil {
		return "", err
	}
	return path, db.Close()
}

func copyIfExists(src, dst string) error {
	data, err := os.ReadFile(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}
