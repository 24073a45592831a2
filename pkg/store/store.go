package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/opencontainers/go-digest"

	"github.com/smarty-pants-inc/botpack/pkg/metrics"
	"github.com/smarty-pants-inc/botpack/pkg/paths"
	"github.com/smarty-pants-inc/botpack/pkg/types"
)

// StoredTree is an immutable tree published in the store under its digest.
type StoredTree struct {
	Digest string
	Path   string
}

// Store is a content-addressed directory of immutable trees keyed by
// their tree digest.
type Store struct {
	root string
}

// New returns a store rooted at the given directory.
func New(root string) *Store {
	return &Store{root: root}
}

// Default returns the store at the default (or BOTPACK_STORE-overridden)
// location.
func Default() (*Store, error) {
	root, err := paths.StoreDir()
	if err != nil {
		return nil, fmt.Errorf("resolving store dir: %w", err)
	}
	return New(root), nil
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// EntryPath returns the on-disk path for a digest, whether or not the
// entry exists.
func (s *Store) EntryPath(dgst string) string {
	return filepath.Join(s.root, dgst)
}

// Entry returns the stored tree for a digest if it exists.
func (s *Store) Entry(dgst string) (StoredTree, bool) {
	p := s.EntryPath(dgst)
	fi, err := os.Stat(p)
	if err != nil || !fi.IsDir() {
		return StoredTree{}, false
	}
	return StoredTree{Digest: dgst, Path: p}, true
}

type treeEntry struct {
	rel     string // posix-form relative path
	path    string
	symlink bool
}

// TreeDigest computes the deterministic digest of a directory tree.
//
// Every regular file contributes a framed record "F"+relpath+NUL+bytes+NUL
// and every symlink "L"+relpath+NUL+target+NUL, in lexicographic order of
// the posix-form relative path. Directories contribute nothing beyond
// their contents.
func TreeDigest(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}

	var entries []treeEntry
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == abs || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			entries = append(entries, treeEntry{rel: filepath.ToSlash(rel), path: p, symlink: true})
		case d.Type().IsRegular():
			entries = append(entries, treeEntry{rel: filepath.ToSlash(rel), path: p})
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking %s: %w", root, err)
	}

	// Total order over posix relpaths, not walk order.
	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	digester := digest.Canonical.Digester()
	h := digester.Hash()
	for _, e := range entries {
		if e.symlink {
			target, err := os.Readlink(e.path)
			if err != nil {
				return "", fmt.Errorf("reading symlink %s: %w", e.path, err)
			}
			h.Write([]byte("L"))
			h.Write([]byte(e.rel))
			h.Write([]byte{0})
			h.Write([]byte(target))
			h.Write([]byte{0})
			continue
		}
		h.Write([]byte("F"))
		h.Write([]byte(e.rel))
		h.Write([]byte{0})
		f, err := os.Open(e.path)
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("hashing %s: %w", e.path, err)
		}
		h.Write([]byte{0})
	}
	return digester.Digest().String(), nil
}

// PutTree publishes a tree into the store under its digest.
//
// Publication is atomic: the tree is copied to <digest>.tmp and renamed
// into place. A concurrent writer racing the rename is tolerated because
// the published name equals the content digest.
func (s *Store) PutTree(src string) (StoredTree, error) {
	fi, err := os.Stat(src)
	if err != nil {
		metrics.StorePutsTotal.WithLabelValues("error").Inc()
		return StoredTree{}, err
	}
	if !fi.IsDir() {
		metrics.StorePutsTotal.WithLabelValues("error").Inc()
		return StoredTree{}, fmt.Errorf("store put: expected directory, got %s", src)
	}

	dgst, err := TreeDigest(src)
	if err != nil {
		metrics.StorePutsTotal.WithLabelValues("error").Inc()
		return StoredTree{}, err
	}

	dst := s.EntryPath(dgst)
	if dirExists(dst) {
		metrics.StorePutsTotal.WithLabelValues("exists").Inc()
		return StoredTree{Digest: dgst, Path: dst}, nil
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		metrics.StorePutsTotal.WithLabelValues("error").Inc()
		return StoredTree{}, err
	}
	tmp := dst + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		metrics.StorePutsTotal.WithLabelValues("error").Inc()
		return StoredTree{}, err
	}
	if err := copyTree(src, tmp); err != nil {
		metrics.StorePutsTotal.WithLabelValues("error").Inc()
		return StoredTree{}, fmt.Errorf("copying into store: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		// A concurrent writer published the same digest first.
		if dirExists(dst) {
			os.RemoveAll(tmp)
			metrics.StorePutsTotal.WithLabelValues("exists").Inc()
			return StoredTree{Digest: dgst, Path: dst}, nil
		}
		metrics.StorePutsTotal.WithLabelValues("error").Inc()
		return StoredTree{}, err
	}
	metrics.StorePutsTotal.WithLabelValues("published").Inc()
	return StoredTree{Digest: dgst, Path: dst}, nil
}

// Materialize produces dest from a stored tree using the requested link
// mode. Mode auto tries symlink, then hardlink, then copy; the first
// attempt that succeeds wins. Returns the mode actually used.
func Materialize(tree StoredTree, dest string, mode types.LinkMode) (types.LinkMode, error) {
	if !types.ValidLinkMode(mode) {
		return "", fmt.Errorf("unsupported link mode: %q", mode)
	}

	attempts := []types.LinkMode{mode}
	if mode == types.LinkModeAuto {
		attempts = []types.LinkMode{types.LinkModeSymlink, types.LinkModeHardlink, types.LinkModeCopy}
	}

	var lastErr error
	for _, m := range attempts {
		if err := materializeTree(tree.Path, dest, m); err != nil {
			lastErr = err
			continue
		}
		return m, nil
	}
	return "", lastErr
}

func materializeTree(src, dest string, mode types.LinkMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := dest + ".tmp"
	if err := rmAny(tmp); err != nil {
		return err
	}

	switch mode {
	case types.LinkModeSymlink:
		if err := os.Symlink(src, tmp); err != nil {
			return err
		}
	case types.LinkModeCopy:
		if err := copyTree(src, tmp); err != nil {
			return err
		}
	case types.LinkModeHardlink:
		if err := hardlinkTree(src, tmp); err != nil {
			if isLinkDenied(err) {
				rmAny(tmp)
			}
			return err
		}
	default:
		return fmt.Errorf("unsupported link mode: %q", mode)
	}

	// Replace dest only once tmp is fully built.
	if err := rmAny(dest); err != nil {
		rmAny(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(out, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(target, out)
		case d.Type().IsRegular():
			return copyFile(p, out)
		}
		return nil
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func hardlinkTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(out, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(p)
			if err != nil {
				return err
			}
			return os.Symlink(target, out)
		case d.Type().IsRegular():
			return os.Link(p, out)
		}
		return nil
	})
}

// isLinkDenied reports whether a hardlink failure is one of the expected
// fall-through signals (cross-device, permission, access).
func isLinkDenied(err error) bool {
	return errors.Is(err, syscall.EXDEV) ||
		errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.EACCES)
}

func rmAny(p string) error {
	fi, err := os.Lstat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if fi.IsDir() {
		return os.RemoveAll(p)
	}
	return os.Remove(p)
}

func dirExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
