// Package scan builds the folder identity picture of a source/target pair:
// a tree of matched folders plus two indexes of unmatched ones. A folder's
// identity is a shallow fingerprint, the sorted list of its immediate child
// names. Two differently-shaped subtrees with identical top-level names
// therefore fingerprint the same; this is an accepted approximation of the
// move matcher, not something the scanner tries to repair.
package scan

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/gosink/gosink/internal/artifact"
	"github.com/gosink/gosink/internal/fsutil"
)

// fingerprintSep joins child names into a folder fingerprint.
const fingerprintSep = ", "

// Folder is one node of the scanned tree. Children are populated only when
// the folder exists as a directory on both sides.
type Folder struct {
	RelPath     string
	Fingerprint string
	Orphan      bool
	Widow       bool
	Children    []*Folder
}

// Index maps a fingerprint to the relative paths of the folders carrying
// it, in the order the walk found them.
type Index map[string][]string

func (ix Index) add(fingerprint, rel string) {
	ix[fingerprint] = append(ix[fingerprint], rel)
}

// Fingerprints returns the index's fingerprints in sorted order.
func (ix Index) Fingerprints() []string {
	keys := make([]string, 0, len(ix))
	for k := range ix {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sorted returns a lexicographically sorted copy of the paths recorded for
// a fingerprint. Pairing works on sorted buckets so that move matching is
// deterministic across runs.
func (ix Index) Sorted(fingerprint string) []string {
	paths := append([]string(nil), ix[fingerprint]...)
	sort.Strings(paths)
	return paths
}

// Total returns the number of paths recorded across all fingerprints.
func (ix Index) Total() int {
	n := 0
	for _, paths := range ix {
		n += len(paths)
	}
	return n
}

// Result holds the output of a scan. The tree is transient; the move and
// copy phases re-derive state with direct filesystem queries and only the
// indexes are consumed after the scan.
type Result struct {
	Root    *Folder
	Orphans Index // directories under target with no counterpart under source
	Widows  Index // directories under source with no counterpart under target
}

// Scanner walks a source/target pair of filesystems rooted at the
// respective sync roots.
type Scanner struct {
	source billy.Filesystem
	target billy.Filesystem
}

// New creates a scanner for the given source and target roots.
func New(source, target billy.Filesystem) *Scanner {
	return &Scanner{source: source, target: target}
}

// Scan walks both trees from the root and returns the folder tree along
// with the orphan and widow indexes. The root must be a directory on both
// sides.
func (s *Scanner) Scan() (*Result, error) {
	if ok, err := fsutil.IsDir(s.source, ""); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("source root is not a directory")
	}
	if ok, err := fsutil.IsDir(s.target, ""); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("target root is not a directory")
	}

	res := &Result{
		Orphans: Index{},
		Widows:  Index{},
	}

	root, err := s.walk("", res.Orphans, res.Widows)
	if err != nil {
		return nil, err
	}
	res.Root = root

	return res, nil
}

// walk classifies one relative path and recurses into matched directories.
// A path recorded as orphan or widow is not descended into; its whole
// subtree moves (or is quarantined) as a unit later.
func (s *Scanner) walk(rel string, orphans, widows Index) (*Folder, error) {
	srcDir, err := fsutil.IsDir(s.source, rel)
	if err != nil {
		return nil, err
	}
	tgtDir, err := fsutil.IsDir(s.target, rel)
	if err != nil {
		return nil, err
	}

	folder := &Folder{
		RelPath: rel,
		Orphan:  !srcDir,
		Widow:   !tgtDir,
	}

	switch {
	case folder.Orphan:
		fp, err := Fingerprint(s.target, rel)
		if err != nil {
			return nil, err
		}
		folder.Fingerprint = fp
		orphans.add(fp, rel)

	case folder.Widow:
		fp, err := Fingerprint(s.source, rel)
		if err != nil {
			return nil, err
		}
		folder.Fingerprint = fp
		widows.add(fp, rel)

	default:
		fp, err := Fingerprint(s.source, rel)
		if err != nil {
			return nil, err
		}
		folder.Fingerprint = fp

		names, err := s.mergedSubdirs(rel)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			child, err := s.walk(path.Join(rel, name), orphans, widows)
			if err != nil {
				return nil, err
			}
			folder.Children = append(folder.Children, child)
		}
	}

	return folder, nil
}

// mergedSubdirs returns the deduplicated, sorted union of subdirectory
// names present under rel on either side, excluding artifacts.
func (s *Scanner) mergedSubdirs(rel string) ([]string, error) {
	seen := map[string]bool{}

	for _, fs := range []billy.Filesystem{s.source, s.target} {
		entries, err := fs.ReadDir(fsutil.Dot(rel))
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", fsutil.Dot(rel), err)
		}
		for _, entry := range entries {
			if !entry.IsDir() || artifact.Ignore(entry.Name()) {
				continue
			}
			seen[entry.Name()] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Fingerprint returns the identity of a directory: its immediate child
// names (files and subdirectories alike), alphabetically sorted and joined
// with ", ". Self-generated artifacts are excluded. Two directories are
// considered the same folder, possibly moved, iff their fingerprints are
// byte-equal.
func Fingerprint(fs billy.Filesystem, rel string) (string, error) {
	entries, err := fs.ReadDir(fsutil.Dot(rel))
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", fsutil.Dot(rel), err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if artifact.Ignore(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	return strings.Join(names, fingerprintSep), nil
}
