package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/grixate/missioncontrol/internal/apperr"
)

// Policy confines relative request paths to a workspace root.
type Policy struct {
	root     string
	realRoot string
}

func NewPolicy(root string) (*Policy, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace path required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs = filepath.Clean(abs)
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		real = abs
	}
	return &Policy{root: abs, realRoot: real}, nil
}

func (p *Policy) Root() string {
	return p.root
}

// Resolve maps rel onto the workspace. Absolute paths, ".." segments and
// paths whose symlinks lead outside the root are rejected. Empty rel is the
// root itself.
func (p *Policy) Resolve(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" || rel == "." || rel == "/" {
		return p.root, nil
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) || filepath.VolumeName(rel) != "" {
		return "", apperr.Invalid("absolute paths are not allowed")
	}
	for _, segment := range strings.FieldsFunc(rel, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return "", apperr.Invalid("path traversal is not allowed")
		}
	}
	clean := filepath.Join(p.root, filepath.FromSlash(rel))
	if !within(p.root, clean) {
		return "", apperr.Invalid("path outside workspace is not allowed")
	}
	real, err := realPath(clean)
	if err != nil {
		return "", err
	}
	if !within(p.realRoot, real) {
		return "", apperr.Invalid("path outside workspace is not allowed")
	}
	return clean, nil
}

// Rel returns the slash-separated path of abs relative to the root.
func (p *Policy) Rel(abs string) string {
	rel, err := filepath.Rel(p.root, abs)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

func within(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

// realPath resolves symlinks in the longest existing prefix of path.
func realPath(path string) (string, error) {
	missing := []string{}
	current := path
	for {
		real, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				real = filepath.Join(real, missing[i])
			}
			return real, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}
