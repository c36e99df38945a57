package validator

import (
	"errors"
	"io"
	"net/http"
)

// sniffLen http.DetectContentType 最多只看前 512 字节
const sniffLen = 512

// gramImageTypes gram 接受的图片类型
var gramImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
	"image/bmp":  {},
}

// IsImage 按文件头判断上传内容是否为 gram 接受的图片，返回嗅探到的 MIME 类型
// 不信任客户端提供的文件名和 Content-Type，读取后流回到开头
func IsImage(file io.ReadSeeker) (bool, string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return false, "", err
	}
	if n == 0 {
		return false, "", nil
	}

	mimeType := http.DetectContentType(head[:n])
	if _, ok := gramImageTypes[mimeType]; !ok {
		return false, "", nil
	}
	return true, mimeType, nil
}
