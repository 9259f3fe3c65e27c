// Package sync implements the synchronization engine: one-way,
// non-destructive mirroring of a target directory tree toward the state of
// a read-only source tree. The source is never modified; everything the
// engine removes or supersedes on the target is relocated into the run's
// quarantine directory instead of being erased.
package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"

	"github.com/gosink/gosink/internal/artifact"
	"github.com/gosink/gosink/internal/config"
	"github.com/gosink/gosink/internal/fsutil"
	"github.com/gosink/gosink/internal/quarantine"
	"github.com/gosink/gosink/internal/runlog"
	"github.com/gosink/gosink/internal/scan"
)

// Engine orchestrates a single sync run. All filesystem mutations are
// sequential renames, copies and creates; the run proceeds to completion or
// aborts on the first error.
type Engine struct {
	cfg    *config.Config
	source billy.Filesystem
	target billy.Filesystem
	logger *slog.Logger

	audit *runlog.Log
	bin   *quarantine.Bin
	view  *targetView
}

// NewEngine creates a sync engine over the given source and target roots.
func NewEngine(cfg *config.Config, source, target billy.Filesystem, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		source: source,
		target: target,
		logger: logger,
	}
}

// Run executes the complete sync: scan, then the folder move, delete and
// file sync passes, each gated by its own toggle but always in that order.
// Later passes assume earlier passes' effects; the delete pass in
// particular must not run before move matching has relocated legitimate
// moves.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("starting sync",
		"source", e.cfg.Source,
		"target", e.cfg.Target,
		"dry_run", e.cfg.DryRun)

	e.view = newTargetView()

	var echo io.Writer
	if e.cfg.Verbose {
		echo = os.Stdout
	}
	audit, err := runlog.Create(e.target, e.cfg.LogFileName(), echo)
	if err != nil {
		return err
	}
	defer func() {
		_ = audit.Close()
	}()
	e.audit = audit

	if err := e.audit.Headerf("gosink log file, run started at: %s", e.cfg.StartTime); err != nil {
		return err
	}
	if err := e.audit.Headerf("Configuration: %s", e.cfg); err != nil {
		return err
	}

	e.bin = quarantine.New(e.target, e.cfg.QuarantineDirName(), e.audit, e.cfg.DryRun)
	if err := e.bin.Create(); err != nil {
		return err
	}

	if err := e.audit.Eventf("Starting scan of both folders..."); err != nil {
		return err
	}

	res, err := scan.New(e.source, e.target).Scan()
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if err := e.audit.Eventf("Scan complete: %d orphan folders, %d widow folders",
		res.Orphans.Total(), res.Widows.Total()); err != nil {
		return err
	}
	e.logger.Info("scan complete",
		"orphans", res.Orphans.Total(),
		"widows", res.Widows.Total())

	if e.cfg.MoveFolders {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.moveFolders(res); err != nil {
			return fmt.Errorf("folder move pass failed: %w", err)
		}
		if err := e.audit.Eventf("Folder move pass complete"); err != nil {
			return err
		}
		e.logger.Info("folder move pass complete")
	}

	if e.cfg.Delete {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.removeOrphans(""); err != nil {
			return fmt.Errorf("delete pass failed: %w", err)
		}
		if err := e.audit.Eventf("Delete pass complete"); err != nil {
			return err
		}
		e.logger.Info("delete pass complete")
	}

	if e.cfg.SyncFiles {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.syncFiles(""); err != nil {
			return fmt.Errorf("file sync pass failed: %w", err)
		}
		if err := e.audit.Eventf("File sync pass complete"); err != nil {
			return err
		}
		e.logger.Info("file sync pass complete")
	}

	if err := e.audit.Eventf("Run finished"); err != nil {
		return err
	}
	e.logger.Info("sync completed successfully")
	return nil
}

// moveFolders pairs orphan folders with widow folders carrying the same
// fingerprint and relocates the orphans in place of the widows under the
// target root. Buckets are iterated and paired in sorted order so runs are
// reproducible. Excess orphans or widows of a fingerprint stay unmatched
// for the later passes.
func (e *Engine) moveFolders(res *scan.Result) error {
	for _, fp := range res.Orphans.Fingerprints() {
		widows := res.Widows.Sorted(fp)
		if len(widows) == 0 {
			continue
		}
		orphans := res.Orphans.Sorted(fp)

		n := min(len(orphans), len(widows))
		for i := 0; i < n; i++ {
			orphan, widow := orphans[i], widows[i]

			// clear the destination before the move
			occupied, err := e.targetExists(widow)
			if err != nil {
				return err
			}
			if occupied {
				if err := e.quarantine(widow); err != nil {
					return err
				}
			}

			if err := e.audit.Eventf("MOVE: %q -> %q", orphan, widow); err != nil {
				return err
			}
			e.logger.Info("moving folder", "from", orphan, "to", widow)

			if e.cfg.DryRun {
				e.markMoved(orphan, widow)
				continue
			}
			if err := e.target.Rename(orphan, widow); err != nil {
				return fmt.Errorf("failed to move %s to %s: %w", orphan, widow, err)
			}
		}
	}
	return nil
}

// removeOrphans walks the target tree and quarantines every file or
// directory with no counterpart at the same relative path under source. A
// directory present on both sides is recursed into, not touched at this
// level; a quarantined directory takes its whole subtree in one move.
func (e *Engine) removeOrphans(rel string) error {
	entries, err := e.targetList(rel)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if artifact.Ignore(entry.name) {
			continue
		}
		childRel := path.Join(rel, entry.name)

		if entry.dir {
			srcDir, err := fsutil.IsDir(e.source, childRel)
			if err != nil {
				return err
			}
			if srcDir {
				if err := e.removeOrphans(childRel); err != nil {
					return err
				}
				continue
			}
		}

		exists, err := fsutil.Exists(e.source, childRel)
		if err != nil {
			return err
		}
		if !exists {
			if err := e.quarantine(childRel); err != nil {
				return err
			}
		}
	}
	return nil
}

// quarantine routes every destructive action through the bin and, in dry
// runs, records the path as gone in the overlay.
func (e *Engine) quarantine(rel string) error {
	if err := e.bin.Quarantine(rel); err != nil {
		return err
	}
	if e.cfg.DryRun {
		e.markGone(rel)
	}
	return nil
}
