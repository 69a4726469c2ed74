package infrastructure

import (
	"path/filepath"
	"strings"
)

// GetMIMEFromPath возвращает MIME-тип изображения по расширению пути.
// Формат не проверяется: для неизвестных расширений возвращается application/octet-stream.
func GetMIMEFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpeg", ".jpg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
