package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"
)

// WebDAVConfig WebDAV 配置
type WebDAVConfig struct {
	URL      string
	Username string
	Password string
	RootPath string
	Timeout  time.Duration
}

// WebDAVStorage 把 gram 图片存到 WebDAV 服务器的 RootPath 下
type WebDAVStorage struct {
	client   *gowebdav.Client
	baseURL  string
	rootPath string
}

// NewWebDAVStorage 创建 WebDAV 存储，启动时会列一次根目录确认可用
func NewWebDAVStorage(cfg WebDAVConfig) (*WebDAVStorage, error) {
	if cfg.URL == "" {
		return nil, errors.New("webdav URL is required")
	}

	client := gowebdav.NewClient(cfg.URL, cfg.Username, cfg.Password)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	s := &WebDAVStorage{
		client:   client,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		rootPath: normalizeRoot(cfg.RootPath),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Health(ctx); err != nil {
		return nil, fmt.Errorf("webdav connection test failed: %w", err)
	}
	return s, nil
}

// normalizeRoot 统一为 "" 或 "/a/b" 形式
func normalizeRoot(root string) string {
	root = strings.Trim(root, "/")
	if root == "" {
		return ""
	}
	return "/" + root
}

func (s *WebDAVStorage) remotePath(storagePath string) string {
	return s.rootPath + "/" + strings.TrimLeft(storagePath, "/")
}

// davCall 在后台执行阻塞的 WebDAV 请求，ctx 结束时立即返回
func davCall[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn()
		done <- result{val, err}
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-done:
		return res.val, res.err
	}
}

// SaveWithContext 上传图片，父目录由客户端按需创建
func (s *WebDAVStorage) SaveWithContext(ctx context.Context, storagePath string, file io.Reader) error {
	if !IsValidStoragePath(storagePath) {
		return fmt.Errorf("invalid storage path: %s", storagePath)
	}

	_, err := davCall(ctx, func() (struct{}, error) {
		return struct{}{}, s.client.WriteStream(s.remotePath(storagePath), file, 0644)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", storagePath, err)
	}
	return nil
}

// GetWithContext 读取图片，返回可 Seek 的内容供 http.ServeContent 使用
func (s *WebDAVStorage) GetWithContext(ctx context.Context, storagePath string) (io.ReadSeeker, error) {
	data, err := davCall(ctx, func() ([]byte, error) {
		return s.client.Read(s.remotePath(storagePath))
	})
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storagePath)
		}
		return nil, fmt.Errorf("failed to read %s: %w", storagePath, err)
	}
	return bytes.NewReader(data), nil
}

// DeleteWithContext 删除图片，远端不存在时视为成功
func (s *WebDAVStorage) DeleteWithContext(ctx context.Context, storagePath string) error {
	_, err := davCall(ctx, func() (struct{}, error) {
		return struct{}{}, s.client.Remove(s.remotePath(storagePath))
	})
	return err
}

// Exists 检查图片是否存在
func (s *WebDAVStorage) Exists(ctx context.Context, storagePath string) (bool, error) {
	return davCall(ctx, func() (bool, error) {
		_, err := s.client.Stat(s.remotePath(storagePath))
		switch {
		case err == nil:
			return true, nil
		case gowebdav.IsErrNotFound(err):
			return false, nil
		default:
			return false, err
		}
	})
}

// Health 列根目录
func (s *WebDAVStorage) Health(ctx context.Context) error {
	_, err := davCall(ctx, func() ([]os.FileInfo, error) {
		root := s.rootPath
		if root == "" {
			root = "/"
		}
		return s.client.ReadDir(root)
	})
	return err
}

// Name 返回存储名称
func (s *WebDAVStorage) Name() string {
	return fmt.Sprintf("webdav:%s%s", s.baseURL, s.rootPath)
}
