package notify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mmeshcher/eorimag/internal/model"
)

// ResolveAttachment превращает вложение в пару имя и содержимое.
func ResolveAttachment(att model.Attachment) (string, []byte, error) {
	switch att.Kind {
	case model.AttachmentFile:
		if att.Path == "" {
			return "", nil, errors.New("empty attachment path")
		}
		data, err := os.ReadFile(att.Path)
		if err != nil {
			return "", nil, fmt.Errorf("read attachment: %w", err)
		}
		return filepath.Base(att.Path), data, nil
	case model.AttachmentInline:
		if att.Name == "" || len(att.Data) == 0 {
			return "", nil, fmt.Errorf("empty inline attachment %q", att.Name)
		}
		return att.Name, att.Data, nil
	}
	return "", nil, fmt.Errorf("unknown attachment kind %d", att.Kind)
}
