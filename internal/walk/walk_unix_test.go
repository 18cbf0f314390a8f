//go:build unix

package walk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func symlinkedTree(t *testing.T) (target, link string) {
	t.Helper()
	dir := t.TempDir()
	target = filepath.Join(dir, "real")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "sub"), 0o755))
	for _, name := range []string{"a", "b", filepath.Join("sub", "c")} {
		require.NoError(t, os.WriteFile(filepath.Join(target, name), []byte(name), 0o644))
	}
	link = filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))
	return target, link
}

func TestFilesSymlinkedRoot(t *testing.T) {
	target, link := symlinkedTree(t)
	fsys := afero.NewOsFs()

	direct, err := Files(fsys, target, true, quiet())
	require.NoError(t, err)
	require.Len(t, direct, 3)

	files, err := Files(fsys, link, false, quiet())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(link, "a"), filepath.Join(link, "b")}, files)

	files, err = Files(fsys, link, true, quiet())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(link, "a"),
		filepath.Join(link, "b"),
		filepath.Join(link, "sub", "c"),
	}, files)
}

func TestFilesRelativeSymlinkChain(t *testing.T) {
	target, _ := symlinkedTree(t)
	dir := filepath.Dir(target)

	// hop -> link -> target, with a relative first hop.
	hop := filepath.Join(dir, "hop")
	require.NoError(t, os.Symlink("link", hop))

	files, err := Files(afero.NewOsFs(), hop, false, quiet())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(hop, "a"), filepath.Join(hop, "b")}, files)
}

func TestFilesSkipsNestedSymlinks(t *testing.T) {
	target, _ := symlinkedTree(t)
	require.NoError(t, os.Symlink(filepath.Join(target, "a"), filepath.Join(target, "alias")))

	files, err := Files(afero.NewOsFs(), target, false, quiet())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(target, "a"), filepath.Join(target, "b")}, files)
}
