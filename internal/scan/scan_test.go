package scan

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/gosink/gosink/internal/testutil"
)

func makeScanner(t *testing.T) (*Scanner, string, string) {
	t.Helper()
	tmpDir := t.TempDir()
	source := filepath.Join(tmpDir, "source")
	target := filepath.Join(tmpDir, "target")
	testutil.MkTree(t, source)
	testutil.MkTree(t, target)
	return New(osfs.New(source), osfs.New(target)), source, target
}

func childPaths(f *Folder) []string {
	paths := make([]string, 0, len(f.Children))
	for _, c := range f.Children {
		paths = append(paths, c.RelPath)
	}
	return paths
}

func TestScanIdenticalTrees(t *testing.T) {
	s, source, target := makeScanner(t)
	for _, root := range []string{source, target} {
		testutil.MkTree(t, root,
			"foo/a/", "foo/b/", "foo/c/",
			"bar/d/", "bar/e/", "bar/f/",
			"baz/",
		)
	}

	res, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	root := res.Root
	if root.RelPath != "" {
		t.Errorf("root relpath = %q, want empty", root.RelPath)
	}
	if root.Orphan || root.Widow {
		t.Error("root should be neither orphan nor widow")
	}
	if root.Fingerprint != "bar, baz, foo" {
		t.Errorf("root fingerprint = %q, want %q", root.Fingerprint, "bar, baz, foo")
	}

	if got, want := childPaths(root), []string{"bar", "baz", "foo"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("root children = %v, want %v", got, want)
	}

	bar := root.Children[0]
	if got, want := childPaths(bar), []string{"bar/d", "bar/e", "bar/f"}; !reflect.DeepEqual(got, want) {
		t.Errorf("bar children = %v, want %v", got, want)
	}

	baz := root.Children[1]
	if len(baz.Children) != 0 {
		t.Errorf("baz should have no children, got %v", childPaths(baz))
	}
	if baz.Fingerprint != "" {
		t.Errorf("empty folder fingerprint = %q, want empty", baz.Fingerprint)
	}

	if res.Orphans.Total() != 0 || res.Widows.Total() != 0 {
		t.Errorf("identical trees produced %d orphans and %d widows",
			res.Orphans.Total(), res.Widows.Total())
	}
}

func TestFingerprintMixesFilesAndFolders(t *testing.T) {
	s, source, target := makeScanner(t)
	testutil.MkTree(t, source, "docs/", "zz.txt", "a.txt")
	testutil.MkTree(t, target, "docs/", "zz.txt", "a.txt")

	res, err := s.Scan()
	if err != nil {
		t.Fatal(err)
	}
	if res.Root.Fingerprint != "a.txt, docs, zz.txt" {
		t.Errorf("fingerprint = %q, want %q", res.Root.Fingerprint, "a.txt, docs, zz.txt")
	}
	// files never become children
	if got, want := childPaths(res.Root), []string{"docs"}; !reflect.DeepEqual(got, want) {
		t.Errorf("children = %v, want %v", got, want)
	}
}

func TestScanClassifiesOrphan(t *testing.T) {
	s, source, target := makeScanner(t)
	testutil.MkTree(t, source, "keep/")
	testutil.MkTree(t, target, "keep/", "extra/one.txt", "extra/two.txt", "extra/deep/inner.txt")

	res, err := s.Scan()
	if err != nil {
		t.Fatal(err)
	}

	fp := "deep, one.txt, two.txt"
	if got, want := res.Orphans.Sorted(fp), []string{"extra"}; !reflect.DeepEqual(got, want) {
		t.Errorf("orphans[%q] = %v, want %v", fp, got, want)
	}
	if res.Widows.Total() != 0 {
		t.Errorf("unexpected widows: %v", res.Widows)
	}

	// the orphan's subtree must not be descended into
	for _, child := range res.Root.Children {
		if child.RelPath == "extra" && len(child.Children) != 0 {
			t.Error("orphan folder must not have scanned children")
		}
	}
}

func TestScanClassifiesWidow(t *testing.T) {
	s, source, target := makeScanner(t)
	testutil.MkTree(t, source, "fresh/a.txt", "fresh/b.txt")
	testutil.MkTree(t, target, "other/")

	res, err := s.Scan()
	if err != nil {
		t.Fatal(err)
	}

	if got, want := res.Widows.Sorted("a.txt, b.txt"), []string{"fresh"}; !reflect.DeepEqual(got, want) {
		t.Errorf("widows = %v, want %v", got, want)
	}
	if got, want := res.Orphans.Sorted(""), []string{"other"}; !reflect.DeepEqual(got, want) {
		t.Errorf("orphans = %v, want %v", got, want)
	}
}

func TestScanNeverAppearsInBothIndexes(t *testing.T) {
	s, source, target := makeScanner(t)
	testutil.MkTree(t, source, "moved-away/x.txt")
	testutil.MkTree(t, target, "moved-here/x.txt")

	res, err := s.Scan()
	if err != nil {
		t.Fatal(err)
	}

	orphans := map[string]bool{}
	for _, fp := range res.Orphans.Fingerprints() {
		for _, p := range res.Orphans.Sorted(fp) {
			orphans[p] = true
		}
	}
	for _, fp := range res.Widows.Fingerprints() {
		for _, p := range res.Widows.Sorted(fp) {
			if orphans[p] {
				t.Errorf("path %q recorded as both orphan and widow", p)
			}
		}
	}
}

func TestScanExcludesArtifacts(t *testing.T) {
	s, source, target := makeScanner(t)
	testutil.MkTree(t, source, "data/a.txt")
	testutil.MkTree(t, target,
		"data/a.txt",
		"GOSINK_LOST_AND_FOUND_20240102T030405/old/thing.txt",
		"gosink_20240102T030405.log",
	)

	res, err := s.Scan()
	if err != nil {
		t.Fatal(err)
	}

	if res.Root.Fingerprint != "data" {
		t.Errorf("fingerprint = %q, want %q", res.Root.Fingerprint, "data")
	}
	if res.Orphans.Total() != 0 || res.Widows.Total() != 0 {
		t.Errorf("artifacts classified as orphans/widows: %v / %v", res.Orphans, res.Widows)
	}
	if got, want := childPaths(res.Root), []string{"data"}; !reflect.DeepEqual(got, want) {
		t.Errorf("children = %v, want %v", got, want)
	}
}

func TestScanFailsWithoutRoot(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "target")
	testutil.MkTree(t, target)

	s := New(osfs.New(filepath.Join(tmpDir, "missing")), osfs.New(target))
	if _, err := s.Scan(); err == nil {
		t.Fatal("expected error for missing source root, got nil")
	}

	source := filepath.Join(tmpDir, "source")
	testutil.MkTree(t, source)
	s = New(osfs.New(source), osfs.New(filepath.Join(tmpDir, "missing")))
	if _, err := s.Scan(); err == nil {
		t.Fatal("expected error for missing target root, got nil")
	}
}

func TestIndexSortedAndTotal(t *testing.T) {
	ix := Index{}
	ix.add("fp", "zeta")
	ix.add("fp", "alpha")
	ix.add("other", "x")

	if got, want := ix.Sorted("fp"), []string{"alpha", "zeta"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Sorted = %v, want %v", got, want)
	}
	if got, want := ix.Fingerprints(), []string{"fp", "other"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Fingerprints = %v, want %v", got, want)
	}
	if ix.Total() != 3 {
		t.Errorf("Total = %d, want 3", ix.Total())
	}
	// Sorted must not mutate the stored order
	if got, want := ix["fp"], []string{"zeta", "alpha"}; !reflect.DeepEqual(got, want) {
		t.Errorf("stored bucket = %v, want %v", got, want)
	}
}
