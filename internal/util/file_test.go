package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIsImageFilename 测试头像文件格式检查
func TestIsImageFilename(t *testing.T) {
	assert.True(t, IsImageFilename("avatar.png"))
	assert.True(t, IsImageFilename("avatar.JPG"))
	assert.True(t, IsImageFilename("zdjęcie.webp"))

	assert.False(t, IsImageFilename("avatar.exe"))
	assert.False(t, IsImageFilename("avatar.png.sh"))
	assert.False(t, IsImageFilename("bez-rozszerzenia"))
}

// TestGenerateUniqueFilename 测试生成的文件名保留原名和扩展名
func TestGenerateUniqueFilename(t *testing.T) {
	got := GenerateUniqueFilename("avatar.png")
	assert.True(t, strings.HasPrefix(got, "avatar_"))
	assert.True(t, strings.HasSuffix(got, ".png"))

	// 路径部分被剥掉，只保留文件名
	got = GenerateUniqueFilename("some/dir/avatar.png")
	assert.True(t, strings.HasPrefix(got, "avatar_"))
}
