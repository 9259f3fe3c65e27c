package sync

import (
	"fmt"
	"path"
	"sort"

	"github.com/gosink/gosink/internal/artifact"
	"github.com/gosink/gosink/internal/fsutil"
)

// syncFiles walks the source tree, creates missing target directories and
// copies new or changed files over. Subdirectories are handled before the
// files of the current directory.
func (e *Engine) syncFiles(rel string) error {
	entries, err := e.source.ReadDir(fsutil.Dot(rel))
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", fsutil.Dot(rel), err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if !entry.IsDir() || artifact.Ignore(entry.Name()) {
			continue
		}
		childRel := path.Join(rel, entry.Name())

		tgtDir, err := e.targetIsDir(childRel)
		if err != nil {
			return err
		}
		if !tgtDir {
			if err := e.audit.Eventf("COPY: %q (new folder)", childRel); err != nil {
				return err
			}
			e.logger.Debug("creating folder", "path", childRel)
			if !e.cfg.DryRun {
				if err := e.target.MkdirAll(childRel, 0o755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", childRel, err)
				}
			}
		}

		if err := e.syncFiles(childRel); err != nil {
			return err
		}
	}

	for _, entry := range entries {
		if entry.IsDir() || artifact.Ignore(entry.Name()) {
			continue
		}
		if err := e.syncFile(path.Join(rel, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

// syncFile copies one file to the target if it is missing or fails the
// change test. A changed file's old version is quarantined first when
// keep_versions is on, and silently overwritten otherwise; either way the
// copy is logged.
func (e *Engine) syncFile(rel string) error {
	exists, err := e.targetExists(rel)
	if err != nil {
		return err
	}
	if !exists {
		return e.copyFile(rel)
	}

	need, err := e.needUpdate(rel)
	if err != nil {
		return err
	}
	if !need {
		return nil
	}

	if e.cfg.KeepVersions {
		if err := e.quarantine(rel); err != nil {
			return err
		}
	}
	return e.copyFile(rel)
}

func (e *Engine) copyFile(rel string) error {
	if err := e.audit.Eventf("COPY: %q", rel); err != nil {
		return err
	}
	e.logger.Debug("copying file", "path", rel)

	if e.cfg.DryRun {
		return nil
	}
	return fsutil.CopyFile(e.source, rel, e.target, rel)
}

// needUpdate is the three-stage change test, short-circuiting at the first
// difference: byte length, then modification time (only a source file
// strictly newer than the target counts), then an optional MD5 comparison.
// A target file newer than source with equal size does not trigger an
// update; that drift is only caught by the checksum stage.
func (e *Engine) needUpdate(rel string) (bool, error) {
	srcInfo, err := e.source.Stat(rel)
	if err != nil {
		return false, fmt.Errorf("failed to stat source %s: %w", rel, err)
	}
	tgtInfo, err := e.targetStat(rel)
	if err != nil {
		return false, err
	}

	if srcInfo.Size() != tgtInfo.Size() {
		return true, nil
	}
	if srcInfo.ModTime().After(tgtInfo.ModTime()) {
		return true, nil
	}
	if !e.cfg.Checksum {
		return false, nil
	}

	srcSum, err := fsutil.FileMD5(e.source, rel)
	if err != nil {
		return false, err
	}
	tgtSum, err := e.targetMD5(rel)
	if err != nil {
		return false, err
	}
	return srcSum != tgtSum, nil
}
