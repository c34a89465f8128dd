package util

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// 头像只接受常见的图片格式
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// IsImageFilename 检查文件扩展名是否为支持的图片格式
func IsImageFilename(filename string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// GenerateUniqueFilename 生成唯一的文件名，避免同名头像互相覆盖
func GenerateUniqueFilename(originalFilename string) string {
	ext := filepath.Ext(originalFilename)
	name := strings.TrimSuffix(filepath.Base(originalFilename), ext)

	timestamp := strconv.FormatInt(time.Now().UnixNano(), 10)
	return name + "_" + timestamp + ext
}
