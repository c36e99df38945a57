// Package imageinfo 读取图片尺寸，不解码像素数据
package imageinfo

import (
	"errors"
	"fmt"
	"image"
	"io"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrUnknownFormat 无法识别的图片格式
var ErrUnknownFormat = errors.New("unknown image format")

// Info 图片基本信息
type Info struct {
	Format string
	Width  int
	Height int
}

// Probe 读取图片头部获取格式与尺寸，结束后将流重置到开头
func Probe(r io.ReadSeeker) (Info, error) {
	cfg, format, err := image.DecodeConfig(r)
	if _, seekErr := r.Seek(0, io.SeekStart); seekErr != nil {
		return Info{}, fmt.Errorf("failed to rewind image stream: %w", seekErr)
	}
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Info{}, ErrUnknownFormat
		}
		return Info{}, fmt.Errorf("failed to decode image config: %w", err)
	}

	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
