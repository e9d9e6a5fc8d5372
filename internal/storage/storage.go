// Package storage содержит хранилище загруженных документов и изображений подписи.
package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedType возвращается для файлов вне списка допустимых форматов.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrNotFound возвращается, если сохранённый файл не найден.
	ErrNotFound = errors.New("stored file not found")
)

const maxNameSuffix = 80

// uniqueName формирует уникальное имя, сохраняя исходное имя файла в качестве суффикса.
func uniqueName(originalName string) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + sanitizeFilename(originalName)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	res := strings.Trim(b.String(), "._")
	if res == "" {
		return "file"
	}

	if len(res) > maxNameSuffix {
		ext := filepath.Ext(res)
		if len(ext) > 10 {
			ext = ""
		}
		res = res[:maxNameSuffix-len(ext)] + ext
	}

	return res
}

// validStoredName отсекает имена, которые могут выйти за пределы каталога хранилища.
func validStoredName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	return "application/octet-stream"
}
