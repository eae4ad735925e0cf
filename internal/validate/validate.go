package validate

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultMaxUploadBytes is the upload ceiling when no policy override is set.
const DefaultMaxUploadBytes = 50 << 20 // 50 MiB

var allowedMediaTypes = map[string]struct{}{
	"application/pdf":               {},
	"application/vnd.ms-powerpoint": {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
}

var allowedExtensions = map[string]struct{}{
	".pdf":  {},
	".ppt":  {},
	".pptx": {},
}

var (
	ErrNoFile          = errors.New("no file provided")
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported media type")
)

// Policy configures the upload acceptance rules.
type Policy struct {
	MaxBytes int64
}

// DefaultPolicy returns the reference policy (50 MiB ceiling).
func DefaultPolicy() Policy {
	return Policy{MaxBytes: DefaultMaxUploadBytes}
}

// Check decides whether an upload is acceptable. It is a pure function: the
// same inputs always yield the same decision, so it can run identically on
// the submitting side and the receiving side. When the declared media type is
// absent or generic the file extension decides instead.
func (p Policy) Check(name, mediaType string, sizeBytes int64) error {
	if strings.TrimSpace(name) == "" {
		return ErrNoFile
	}
	if sizeBytes <= 0 {
		return ErrNoFile
	}

	maxBytes := p.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if sizeBytes > maxBytes {
		return fmt.Errorf("%w: maximum size is %d MB", ErrTooLarge, maxBytes>>20)
	}

	mt := normalizeMediaType(mediaType)
	if mt != "" && !isGeneric(mt) {
		if _, ok := allowedMediaTypes[mt]; ok {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnsupportedType, mt)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExtensions[ext]; ok {
		return nil
	}
	return fmt.Errorf("%w: only PDF and PPT files are allowed", ErrUnsupportedType)
}

func normalizeMediaType(raw string) string {
	mt := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

func isGeneric(mediaType string) bool {
	switch mediaType {
	case "application/octet-stream", "binary/octet-stream":
		return true
	default:
		return false
	}
}
