package validation

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"
)

const pngDataURLPrefix = "data:image/png;base64,"

// ErrMalformedSignature возвращается, если подпись не является корректным PNG в формате data URL.
var ErrMalformedSignature = errors.New("malformed signature payload")

// DecodeSignature извлекает PNG-изображение подписи из data URL холста.
func DecodeSignature(dataURL string) ([]byte, error) {
	dataURL = strings.TrimSpace(dataURL)

	if len(dataURL) < len(pngDataURLPrefix) || !strings.EqualFold(dataURL[:len(pngDataURLPrefix)], pngDataURLPrefix) {
		return nil, fmt.Errorf("%w: expected %q prefix", ErrMalformedSignature, pngDataURLPrefix)
	}

	payload := dataURL[len(pngDataURLPrefix):]
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrMalformedSignature)
	}

	return data, nil
}
