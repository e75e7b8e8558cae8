package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupBytes_FirstOccurrenceAndTerminators(t *testing.T) {
	in := "h\na\nb\na\na\r\nb\n\n\nb"
	out, res := DedupBytes([]byte(in))

	// `a\r\n` 与 `a\n` 不同；末行无换行的 `b` 与 `b\n` 不同；空行也按行去重。
	assert.Equal(t, "h\na\nb\na\r\n\nb", string(out))
	assert.Equal(t, DedupResult{Lines: 9, Unique: 6, Dropped: 3}, res)
}

func TestDedupBytes_Empty(t *testing.T) {
	out, res := DedupBytes(nil)
	assert.Empty(t, out)
	assert.Equal(t, DedupResult{}, res)
}

func TestDedupLines(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "export.txt")
	require.NoError(t, os.WriteFile(in, []byte("x,y\n1,2\n1,2\nx,y\n3,4\n"), 0o644))

	out := filepath.Join(dir, "nested", "export.dedup.txt")
	res, err := DedupLines(in, out)
	require.NoError(t, err)
	assert.Equal(t, DedupResult{Lines: 5, Unique: 3, Dropped: 2}, res)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "x,y\n1,2\n3,4\n", string(b))

	// 原地去重
	res, err = DedupLines(in, in)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Dropped)
	b, _ = os.ReadFile(in)
	assert.Equal(t, "x,y\n1,2\n3,4\n", string(b))
}

func TestDedupLines_MissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := DedupLines(filepath.Join(dir, "nope.txt"), filepath.Join(dir, "out.txt"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))

	_, statErr := os.Stat(filepath.Join(dir, "out.txt"))
	assert.True(t, os.IsNotExist(statErr), "输入不存在时不应写出文件")
}
