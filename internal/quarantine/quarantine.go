// Package quarantine implements the non-destructive delete. Nothing is
// ever erased from the target tree: superseded or extraneous content is
// relocated into a run-scoped lost-and-found directory, mirroring its
// original path relative to the target root.
package quarantine

import (
	"fmt"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/gosink/gosink/internal/fsutil"
	"github.com/gosink/gosink/internal/runlog"
)

// Bin is the sole means of removing anything from the target tree.
type Bin struct {
	target billy.Filesystem
	dir    string
	audit  *runlog.Log
	dryRun bool
}

// New creates a quarantine bin rooted at dir under the target filesystem.
func New(target billy.Filesystem, dir string, audit *runlog.Log, dryRun bool) *Bin {
	return &Bin{
		target: target,
		dir:    dir,
		audit:  audit,
		dryRun: dryRun,
	}
}

// Dir returns the quarantine directory name under the target root.
func (b *Bin) Dir() string {
	return b.dir
}

// Create makes the quarantine directory. Dry runs create nothing.
func (b *Bin) Create() error {
	if b.dryRun {
		return nil
	}
	if err := b.target.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create quarantine directory: %w", err)
	}
	return nil
}

// Quarantine moves the file or directory at rel into the quarantine
// directory, preserving its path relative to the target root. The move is a
// single rename, never a copy-then-delete, so a directory takes its whole
// subtree with it in one operation.
func (b *Bin) Quarantine(rel string) error {
	if err := b.audit.Eventf("DELETE: %q", rel); err != nil {
		return err
	}
	if b.dryRun {
		return nil
	}

	dest := path.Join(b.dir, rel)
	if parent := path.Dir(dest); parent != b.dir {
		if err := b.mirrorDir(parent); err != nil {
			return fmt.Errorf("failed to create quarantine path for %s: %w", rel, err)
		}
	}

	if exists, err := fsutil.Exists(b.target, dest); err != nil {
		return err
	} else if exists {
		if err := b.moveAside(dest); err != nil {
			return err
		}
	}

	if err := b.target.Rename(rel, dest); err != nil {
		return fmt.Errorf("failed to quarantine %s: %w", rel, err)
	}

	return nil
}

// mirrorDir creates a directory path inside the bin. A previously
// quarantined file can occupy a name a later quarantine needs as a
// directory (a squatter file quarantined before the subtree that replaced
// it); such a collision is moved aside to a numbered sibling name instead
// of failing the run.
func (b *Bin) mirrorDir(dir string) error {
	cur := b.dir
	for _, comp := range strings.Split(strings.TrimPrefix(dir, b.dir+"/"), "/") {
		cur = path.Join(cur, comp)

		isDir, err := fsutil.IsDir(b.target, cur)
		if err != nil {
			return err
		}
		if isDir {
			continue
		}
		exists, err := fsutil.Exists(b.target, cur)
		if err != nil {
			return err
		}
		if exists {
			if err := b.moveAside(cur); err != nil {
				return err
			}
		}
		if err := b.target.MkdirAll(cur, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// moveAside renames a bin entry to the first free numbered sibling name.
func (b *Bin) moveAside(p string) error {
	for n := 1; ; n++ {
		alt := fmt.Sprintf("%s.%d", p, n)
		exists, err := fsutil.Exists(b.target, alt)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := b.target.Rename(p, alt); err != nil {
			return fmt.Errorf("failed to move aside quarantined entry %s: %w", p, err)
		}
		return nil
	}
}
