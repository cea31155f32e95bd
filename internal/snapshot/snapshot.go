// Package snapshot preserves the generated output of a kard before a
// destructive reset, so a broken make can be recovered by hand.
package snapshot

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ballast-sh/ballast/internal/fileutil"
)

const (
	// Prefix is the prefix for backup directory names.
	Prefix = "backup-"
	// nameFormat orders backups by creation time; a uuid suffix keeps
	// names unique even when clocks collide.
	nameFormat = "20060102-150405.000000000"
	// MaxBackups is the number of backups retained per kard.
	MaxBackups = 10
)

// Info holds metadata about one retained backup.
type Info struct {
	Name      string
	Path      string
	Created   time.Time
	FileCount int
}

func backupsDir(root, kardName string) string {
	return filepath.Join(root, ".ballast", "backups", kardName)
}

// Capture moves each existing path into a fresh backup directory under
// the workspace and prunes old backups. Paths that do not exist are
// skipped. Returns the backup name, or an empty string if there was
// nothing to capture.
func Capture(root, kardName string, paths []string) (string, error) {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
		existing = append(existing, p)
	}
	if len(existing) == 0 {
		return "", nil
	}

	name := Prefix + time.Now().Format(nameFormat) + "-" + uuid.NewString()[:8]
	dst := backupsDir(root, kardName)
	if err := os.MkdirAll(filepath.Join(dst, name), 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}
	for _, p := range existing {
		if err := os.Rename(p, filepath.Join(dst, name, filepath.Base(p))); err != nil {
			return "", fmt.Errorf("back up %s: %w", p, err)
		}
	}

	if err := prune(root, kardName); err != nil {
		return "", err
	}
	return name, nil
}

// List returns the retained backups for a kard, newest first.
func List(root, kardName string) ([]Info, error) {
	entries, err := os.ReadDir(backupsDir(root, kardName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backups: %w", err)
	}

	var backups []Info
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), Prefix) {
			continue
		}
		stamp := strings.TrimPrefix(entry.Name(), Prefix)
		if len(stamp) < len(nameFormat) {
			continue
		}
		created, err := time.ParseInLocation(nameFormat, stamp[:len(nameFormat)], time.Local)
		if err != nil {
			continue
		}
		path := filepath.Join(backupsDir(root, kardName), entry.Name())
		backups = append(backups, Info{
			Name:      entry.Name(),
			Path:      path,
			Created:   created,
			FileCount: countFiles(path),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Created.After(backups[j].Created)
	})
	return backups, nil
}

// prune removes the oldest backups beyond MaxBackups.
func prune(root, kardName string) error {
	backups, err := List(root, kardName)
	if err != nil {
		return err
	}
	for _, old := range backups[min(len(backups), MaxBackups):] {
		if err := fileutil.EnsureAbsent(old.Path); err != nil {
			return err
		}
	}
	return nil
}

func countFiles(dir string) int {
	count := 0
	filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && d.Type().IsRegular() {
			count++
		}
		return nil
	})
	return count
}
