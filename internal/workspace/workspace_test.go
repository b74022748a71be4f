package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grixate/missioncontrol/internal/activity"
	"github.com/grixate/missioncontrol/internal/apperr"
)

type recorder struct{ items []activity.Activity }

func (r *recorder) Record(_ context.Context, a activity.Activity) { r.items = append(r.items, a) }

func newTestService(t *testing.T) (*Service, string, *recorder) {
	t.Helper()
	root := t.TempDir()
	policy, err := NewPolicy(root)
	require.NoError(t, err)
	rec := &recorder{}
	return NewService(policy, rec, nil, nil), policy.Root(), rec
}

func TestResolveRejectsTraversal(t *testing.T) {
	policy, err := NewPolicy(t.TempDir())
	require.NoError(t, err)

	for _, rel := range []string{"../etc/passwd", "a/../../b", "a/..", `..\win`, "/etc/passwd"} {
		_, err := policy.Resolve(rel)
		assert.True(t, errors.Is(err, apperr.ErrInvalid), "path %q", rel)
	}

	abs, err := policy.Resolve("memory/2026-03-01.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(policy.Root(), "memory", "2026-03-01.md"), abs)

	abs, err = policy.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, policy.Root(), abs)
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0o644))
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	policy, err := NewPolicy(root)
	require.NoError(t, err)

	_, err = policy.Resolve("link/secret.txt")
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	_, err = policy.Resolve("link/new.txt")
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
}

func TestWriteReadAndTree(t *testing.T) {
	svc, root, rec := newTestService(t)
	ctx := context.Background()

	_, err := svc.Write(ctx, "notes/today.md", "# Today\n")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "AGENTS.md"), []byte("agents"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "x"), 0o755))

	content, err := svc.Read(ctx, "notes/today.md")
	require.NoError(t, err)
	assert.Equal(t, "# Today\n", content.Content)
	assert.Equal(t, "notes/today.md", content.Path)

	tree, err := svc.Tree(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, "notes", tree.Children[0].Name)
	assert.Equal(t, "dir", tree.Children[0].Type)
	assert.Equal(t, "AGENTS.md", tree.Children[1].Name)
	assert.True(t, tree.Children[1].Protected)
	assert.Equal(t, "6 B", tree.Children[1].SizeHuman)
	require.Len(t, tree.Children[0].Children, 1)
	assert.Equal(t, "notes/today.md", tree.Children[0].Children[0].Path)

	shallow, err := svc.Tree(ctx, "", 1)
	require.NoError(t, err)
	assert.Nil(t, shallow.Children[0].Children)

	require.Len(t, rec.items, 1)
	assert.Equal(t, activity.TypeFileWrite, rec.items[0].Type)
}

func TestReadRejectsBinaryAndLargeFiles(t *testing.T) {
	svc, root, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(root, "blob.bin"), []byte{0x00, 0x01}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.txt"), []byte(strings.Repeat("a", MaxTextBytes+1)), 0o644))

	_, err := svc.Read(ctx, "blob.bin")
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	_, err = svc.Read(ctx, "big.txt")
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	_, err = svc.Read(ctx, "missing.txt")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestDeleteProtectedFileIsForbidden(t *testing.T) {
	svc, root, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(root, "SOUL.md"), []byte("soul"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "memory"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "memory", "SOUL.md"), []byte("copy"), 0o644))

	err := svc.Delete(ctx, "SOUL.md")
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	assert.FileExists(t, filepath.Join(root, "SOUL.md"))

	err = svc.Rename(ctx, "SOUL.md", "OLD_SOUL.md")
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	require.NoError(t, svc.Delete(ctx, "memory/SOUL.md"))
	assert.NoFileExists(t, filepath.Join(root, "memory", "SOUL.md"))

	err = svc.Delete(ctx, "")
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
}

func TestRenameAndMkdir(t *testing.T) {
	svc, root, rec := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Mkdir(ctx, "drafts/2026"))
	_, err := svc.Write(ctx, "a.md", "a")
	require.NoError(t, err)

	require.NoError(t, svc.Rename(ctx, "a.md", "drafts/2026/a.md"))
	assert.FileExists(t, filepath.Join(root, "drafts", "2026", "a.md"))

	_, err = svc.Write(ctx, "b.md", "b")
	require.NoError(t, err)
	err = svc.Rename(ctx, "b.md", "drafts/2026/a.md")
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	err = svc.Rename(ctx, "ghost.md", "x.md")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	types := []string{}
	for _, item := range rec.items {
		types = append(types, item.Type)
	}
	assert.Equal(t, []string{activity.TypeFileMkdir, activity.TypeFileWrite, activity.TypeFileRename, activity.TypeFileWrite}, types)
}

func TestUpload(t *testing.T) {
	svc, root, _ := newTestService(t)
	ctx := context.Background()

	node, err := svc.Upload(ctx, "uploads", "../../report.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/report.pdf", node.Path)
	assert.FileExists(t, filepath.Join(root, "uploads", "report.pdf"))

	_, err = svc.Upload(ctx, "", "big.bin", strings.NewReader(strings.Repeat("x", MaxUploadBytes+1)))
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	_, err = svc.Upload(ctx, "", ".env", strings.NewReader("x"))
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
}

func TestOpenForDownload(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Write(ctx, "out.txt", "hello")
	require.NoError(t, err)

	f, info, err := svc.Open(ctx, "out.txt")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(5), info.Size())
}
