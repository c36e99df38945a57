package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLocalStorage_PathTraversal_Prevention 测试路径遍历防护
func TestLocalStorage_PathTraversal_Prevention(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()

	traversalAttempts := []string{
		"../../../etc/passwd",
		"..\\..\\..\\windows\\system32\\config\\sam",
		"../../.env",
		"..",
		".",
		"",
		"folder/../../../etc/passwd",
		"/etc/passwd",
	}

	for _, attempt := range traversalAttempts {
		t.Run("save_"+attempt, func(t *testing.T) {
			err := storage.SaveWithContext(ctx, attempt, strings.NewReader("test content"))
			require.Error(t, err, "Path traversal attempt should be rejected: %s", attempt)
			assert.Contains(t, err.Error(), "invalid")
		})
	}

	_, err = storage.GetWithContext(ctx, "../../../etc/passwd")
	assert.ErrorContains(t, err, "invalid")

	err = storage.DeleteWithContext(ctx, "../../../etc/passwd")
	assert.ErrorContains(t, err, "invalid")
}

// TestLocalStorage_RoundTrip 测试保存、读取、删除
func TestLocalStorage_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewLocalStorage(dir)
	require.NoError(t, err)

	ctx := context.Background()
	path := "original/2026/01/02/abcdef012345.png"

	require.NoError(t, storage.SaveWithContext(ctx, path, strings.NewReader("png-bytes")))

	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(path)))
	require.NoError(t, err)

	exists, err := storage.Exists(ctx, path)
	require.NoError(t, err)
	assert.True(t, exists)

	reader, err := storage.GetWithContext(ctx, path)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	if closer, ok := reader.(io.Closer); ok {
		_ = closer.Close()
	}

	require.NoError(t, storage.DeleteWithContext(ctx, path))

	exists, err = storage.Exists(ctx, path)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = storage.GetWithContext(ctx, path)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = storage.DeleteWithContext(ctx, path)
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestLocalStorage_NoPartialFile 复制失败时不留下目标文件
func TestLocalStorage_NoPartialFile(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewLocalStorage(dir)
	require.NoError(t, err)

	path := "original/2026/01/02/broken.jpg"
	err = storage.SaveWithContext(context.Background(), path, &failingReader{})
	require.Error(t, err)

	exists, err := storage.Exists(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestLocalStorage_CanceledContext 已取消的上下文不写入
func TestLocalStorage_CanceledContext(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = storage.SaveWithContext(ctx, "image.jpg", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

// TestLocalStorage_Health 测试健康检查
func TestLocalStorage_Health(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, storage.Health(context.Background()))
	assert.Equal(t, "local", storage.Name())
}

// TestIsValidStoragePath 测试路径校验函数
func TestIsValidStoragePath(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantValid bool
	}{
		{"simple", "file.txt", true},
		{"nested", "original/2024/01/15/a1b2c3d4e5f6.jpg", true},
		{"dashes_underscores", "file-with_dashes.webp", true},
		{"empty", "", false},
		{"dot", ".", false},
		{"dotdot", "..", false},
		{"absolute_unix", "/etc/passwd", false},
		{"absolute_windows", "C:\\file.txt", false},
		{"traversal", "../file.txt", false},
		{"null_byte", "file\x00.txt", false},
		{"newline", "file\n.txt", false},
		{"shell", "file;rm -rf.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantValid, IsValidStoragePath(tt.path), "path: %q", tt.path)
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

// BenchmarkIsValidStoragePath 基准测试
func BenchmarkIsValidStoragePath(b *testing.B) {
	paths := []string{
		"normal_file.txt",
		"path/to/file.png",
		"../../../etc/passwd",
		"",
	}

	for i := 0; i < b.N; i++ {
		for _, p := range paths {
			IsValidStoragePath(p)
		}
	}
}
