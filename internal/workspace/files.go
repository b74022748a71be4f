package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/grixate/missioncontrol/internal/activity"
	"github.com/grixate/missioncontrol/internal/apperr"
	"github.com/grixate/missioncontrol/internal/telemetry"
)

const (
	DefaultTreeDepth = 3
	MaxTreeDepth     = 6
	MaxTextBytes     = 2 << 20
	MaxUploadBytes   = 10 << 20
)

// ProtectedFiles live at the workspace root and cannot be deleted or renamed.
var ProtectedFiles = []string{"AGENTS.md", "SOUL.md", "USER.md", "IDENTITY.md", "TOOLS.md", "HEARTBEAT.md", "MEMORY.md"}

type ActivityRecorder interface {
	Record(ctx context.Context, a activity.Activity)
}

type Node struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Type       string    `json:"type"`
	Size       int64     `json:"size,omitempty"`
	SizeHuman  string    `json:"sizeHuman,omitempty"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Protected  bool      `json:"protected,omitempty"`
	Children   []Node    `json:"children,omitempty"`
}

type FileContent struct {
	Path       string    `json:"path"`
	Content    string    `json:"content"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

type Service struct {
	policy   *Policy
	activity ActivityRecorder
	metrics  *telemetry.Metrics
	logger   *zap.Logger
}

func NewService(policy *Policy, recorder ActivityRecorder, metrics *telemetry.Metrics, logger *zap.Logger) *Service {
	if metrics == nil {
		metrics = &telemetry.Metrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{policy: policy, activity: recorder, metrics: metrics, logger: logger}
}

func (s *Service) isProtected(abs string) bool {
	if filepath.Dir(abs) != s.policy.Root() {
		return false
	}
	name := filepath.Base(abs)
	for _, protected := range ProtectedFiles {
		if name == protected {
			return true
		}
	}
	return false
}

func skipEntry(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules"
}

// Tree lists rel down to depth levels. Hidden entries and node_modules are
// left out; directories sort before files.
func (s *Service) Tree(ctx context.Context, rel string, depth int) (Node, error) {
	if depth <= 0 {
		depth = DefaultTreeDepth
	}
	if depth > MaxTreeDepth {
		depth = MaxTreeDepth
	}
	abs, err := s.policy.Resolve(rel)
	if err != nil {
		return Node{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Node{}, notFound(err, rel)
	}
	if !info.IsDir() {
		return Node{}, apperr.Invalid("%s is not a directory", rel)
	}
	return s.walk(abs, info, depth), nil
}

func (s *Service) walk(abs string, info os.FileInfo, depth int) Node {
	node := Node{
		Name:       info.Name(),
		Path:       s.policy.Rel(abs),
		ModifiedAt: info.ModTime().UTC(),
	}
	if !info.IsDir() {
		node.Type = "file"
		node.Size = info.Size()
		node.SizeHuman = humanize.IBytes(uint64(info.Size()))
		node.Protected = s.isProtected(abs)
		return node
	}
	node.Type = "dir"
	if depth == 0 {
		return node
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		s.logger.Warn("read workspace directory", zap.String("path", abs), zap.Error(err))
		return node
	}
	node.Children = []Node{}
	for _, entry := range entries {
		if skipEntry(entry.Name()) {
			continue
		}
		childInfo, err := entry.Info()
		if err != nil {
			continue
		}
		node.Children = append(node.Children, s.walk(filepath.Join(abs, entry.Name()), childInfo, depth-1))
	}
	sort.Slice(node.Children, func(i, j int) bool {
		a, b := node.Children[i], node.Children[j]
		if a.Type != b.Type {
			return a.Type == "dir"
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	return node
}

// Read returns a text file up to MaxTextBytes.
func (s *Service) Read(ctx context.Context, rel string) (FileContent, error) {
	abs, err := s.resolveFile(rel)
	if err != nil {
		return FileContent{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return FileContent{}, notFound(err, rel)
	}
	if info.IsDir() {
		return FileContent{}, apperr.Invalid("%s is a directory", rel)
	}
	if info.Size() > MaxTextBytes {
		return FileContent{}, apperr.Invalid("%s is larger than %s", rel, humanize.IBytes(MaxTextBytes))
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return FileContent{}, fmt.Errorf("read %s: %w", rel, err)
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return FileContent{}, apperr.Invalid("%s is not a text file", rel)
	}
	return FileContent{Path: s.policy.Rel(abs), Content: string(data), Size: info.Size(), ModifiedAt: info.ModTime().UTC()}, nil
}

func (s *Service) Write(ctx context.Context, rel, content string) (FileContent, error) {
	if len(content) > MaxTextBytes {
		return FileContent{}, apperr.Invalid("content is larger than %s", humanize.IBytes(MaxTextBytes))
	}
	abs, err := s.resolveFile(rel)
	if err != nil {
		return FileContent{}, err
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return FileContent{}, apperr.Invalid("%s is a directory", rel)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return FileContent{}, err
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return FileContent{}, fmt.Errorf("write %s: %w", rel, err)
	}
	s.metrics.FileWrites.Add(1)
	s.record(ctx, activity.TypeFileWrite, "Wrote "+s.policy.Rel(abs), map[string]any{"path": s.policy.Rel(abs), "bytes": len(content)})
	return FileContent{Path: s.policy.Rel(abs), Content: content, Size: int64(len(content)), ModifiedAt: time.Now().UTC()}, nil
}

func (s *Service) Delete(ctx context.Context, rel string) error {
	abs, err := s.resolveFile(rel)
	if err != nil {
		return err
	}
	if s.isProtected(abs) {
		return apperr.Forbidden("%s is protected and cannot be deleted", filepath.Base(abs))
	}
	if _, err := os.Lstat(abs); err != nil {
		return notFound(err, rel)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("delete %s: %w", rel, err)
	}
	s.record(ctx, activity.TypeFileDelete, "Deleted "+s.policy.Rel(abs), map[string]any{"path": s.policy.Rel(abs)})
	return nil
}

func (s *Service) Rename(ctx context.Context, from, to string) error {
	src, err := s.resolveFile(from)
	if err != nil {
		return err
	}
	dst, err := s.resolveFile(to)
	if err != nil {
		return err
	}
	if s.isProtected(src) {
		return apperr.Forbidden("%s is protected and cannot be renamed", filepath.Base(src))
	}
	if _, err := os.Lstat(src); err != nil {
		return notFound(err, from)
	}
	if _, err := os.Lstat(dst); err == nil {
		return apperr.Invalid("%s already exists", to)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s: %w", from, err)
	}
	s.record(ctx, activity.TypeFileRename, fmt.Sprintf("Renamed %s to %s", s.policy.Rel(src), s.policy.Rel(dst)),
		map[string]any{"from": s.policy.Rel(src), "to": s.policy.Rel(dst)})
	return nil
}

func (s *Service) Mkdir(ctx context.Context, rel string) error {
	abs, err := s.resolveFile(rel)
	if err != nil {
		return err
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		return apperr.Invalid("%s exists and is a file", rel)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", rel, err)
	}
	s.record(ctx, activity.TypeFileMkdir, "Created directory "+s.policy.Rel(abs), map[string]any{"path": s.policy.Rel(abs)})
	return nil
}

// Upload stores r as dir/filename, rejecting content over MaxUploadBytes.
func (s *Service) Upload(ctx context.Context, dir, filename string, r io.Reader) (Node, error) {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(filename, `\`, "/")))
	if name == "/" || name == "." || strings.HasPrefix(name, ".") {
		return Node{}, apperr.Invalid("invalid upload filename %q", filename)
	}
	dirAbs, err := s.policy.Resolve(dir)
	if err != nil {
		return Node{}, err
	}
	abs, err := s.policy.Resolve(filepath.ToSlash(filepath.Join(s.policy.Rel(dirAbs), name)))
	if err != nil {
		return Node{}, err
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return Node{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return Node{}, apperr.Invalid("upload is larger than %s", humanize.IBytes(MaxUploadBytes))
	}
	if err := os.MkdirAll(dirAbs, 0o755); err != nil {
		return Node{}, err
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return Node{}, fmt.Errorf("write upload: %w", err)
	}
	s.metrics.FileWrites.Add(1)
	info, err := os.Stat(abs)
	if err != nil {
		return Node{}, err
	}
	s.record(ctx, activity.TypeFileUpload, "Uploaded "+s.policy.Rel(abs), map[string]any{"path": s.policy.Rel(abs), "bytes": len(data)})
	return s.walk(abs, info, 0), nil
}

// Open returns the file for download. The caller closes it.
func (s *Service) Open(ctx context.Context, rel string) (*os.File, os.FileInfo, error) {
	abs, err := s.resolveFile(rel)
	if err != nil {
		return nil, nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, nil, notFound(err, rel)
	}
	if info.IsDir() {
		return nil, nil, apperr.Invalid("%s is a directory", rel)
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", rel, err)
	}
	return f, info, nil
}

// resolveFile is Resolve without the root itself.
func (s *Service) resolveFile(rel string) (string, error) {
	abs, err := s.policy.Resolve(rel)
	if err != nil {
		return "", err
	}
	if abs == s.policy.Root() {
		return "", apperr.Invalid("path is required")
	}
	return abs, nil
}

func (s *Service) record(ctx context.Context, kind, description string, metadata map[string]any) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, activity.Activity{
		Type:        kind,
		Description: description,
		Status:      activity.StatusSuccess,
		Metadata:    metadata,
	})
}

func notFound(err error, rel string) error {
	if errors.Is(err, os.ErrNotExist) {
		return apperr.NotFound("%s not found", rel)
	}
	return err
}
