package sync

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/gosink/gosink/internal/fsutil"
)

// targetView overlays the moves and quarantines a dry run has already
// logged onto the untouched target tree, so later passes observe the state
// a real run would have produced and the dry-run log records exactly the
// lines of a real run against the same fixture. In a real run the overlay
// stays empty and every lookup falls through to the filesystem.
type targetView struct {
	moved map[string]string // destination -> original location still on disk
	gone  map[string]bool   // quarantined or moved-away paths
}

func newTargetView() *targetView {
	return &targetView{
		moved: map[string]string{},
		gone:  map[string]bool{},
	}
}

// targetEntry is the subset of a directory entry the passes care about.
type targetEntry struct {
	name string
	dir  bool
}

func (e *Engine) markGone(rel string) {
	e.view.gone[rel] = true
}

func (e *Engine) markMoved(orphan, widow string) {
	e.view.gone[orphan] = true
	e.view.moved[widow] = orphan
}

// resolveTarget maps a target-relative path through the overlay. It returns
// the path to consult on disk and whether anything is there at all.
func (e *Engine) resolveTarget(rel string) (string, bool) {
	if !e.cfg.DryRun || rel == "" {
		return rel, true
	}

	// longest moved-destination prefix wins
	best := ""
	for dest := range e.view.moved {
		if dest == rel || strings.HasPrefix(rel, dest+"/") {
			if len(dest) > len(best) {
				best = dest
			}
		}
	}
	if best != "" {
		return e.view.moved[best] + strings.TrimPrefix(rel, best), true
	}

	for p := rel; ; {
		if e.view.gone[p] {
			return rel, false
		}
		parent := path.Dir(p)
		if parent == "." || parent == p {
			break
		}
		p = parent
	}
	return rel, true
}

func (e *Engine) targetExists(rel string) (bool, error) {
	mapped, ok := e.resolveTarget(rel)
	if !ok {
		return false, nil
	}
	return fsutil.Exists(e.target, mapped)
}

func (e *Engine) targetIsDir(rel string) (bool, error) {
	mapped, ok := e.resolveTarget(rel)
	if !ok {
		return false, nil
	}
	return fsutil.IsDir(e.target, mapped)
}

func (e *Engine) targetStat(rel string) (os.FileInfo, error) {
	mapped, ok := e.resolveTarget(rel)
	if !ok {
		return nil, fmt.Errorf("failed to stat target %s: %w", rel, os.ErrNotExist)
	}
	info, err := e.target.Stat(mapped)
	if err != nil {
		return nil, fmt.Errorf("failed to stat target %s: %w", rel, err)
	}
	return info, nil
}

func (e *Engine) targetMD5(rel string) (string, error) {
	mapped, ok := e.resolveTarget(rel)
	if !ok {
		return "", fmt.Errorf("failed to hash target %s: %w", rel, os.ErrNotExist)
	}
	return fsutil.FileMD5(e.target, mapped)
}

// targetList lists a target directory through the overlay: moved-away and
// quarantined entries disappear, move destinations appear.
func (e *Engine) targetList(rel string) ([]targetEntry, error) {
	mapped, ok := e.resolveTarget(rel)
	if !ok {
		return nil, fmt.Errorf("failed to read directory %s: %w", rel, os.ErrNotExist)
	}

	infos, err := e.target.ReadDir(fsutil.Dot(mapped))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fsutil.Dot(rel), err)
	}

	entries := make([]targetEntry, 0, len(infos))
	seen := map[string]bool{}
	for _, info := range infos {
		childRel := path.Join(rel, info.Name())
		childMapped, ok := e.resolveTarget(childRel)
		if !ok {
			continue
		}
		// a name a move redirected elsewhere takes its dir-ness from the
		// mapped path, not from whatever still sits on disk under it
		dir := info.IsDir()
		if childMapped != childRel {
			dir, err = fsutil.IsDir(e.target, childMapped)
			if err != nil {
				return nil, err
			}
		}
		entries = append(entries, targetEntry{name: info.Name(), dir: dir})
		seen[info.Name()] = true
	}

	for dest := range e.view.moved {
		parent := path.Dir(dest)
		if parent == "." {
			parent = ""
		}
		if parent != rel || seen[path.Base(dest)] {
			continue
		}
		entries = append(entries, targetEntry{name: path.Base(dest), dir: true})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries, nil
}
