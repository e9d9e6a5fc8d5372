package validation

import (
	"path/filepath"
	"strings"
)

var allowedDocumentExt = map[string]struct{}{
	".pdf":  {},
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// IsAllowedDocument проверяет, что расширение файла входит в список допустимых форматов документов.
func IsAllowedDocument(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok := allowedDocumentExt[ext]
	return ok
}
