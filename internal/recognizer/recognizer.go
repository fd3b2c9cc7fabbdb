// Package recognizer turns a photo or a free-text meal description into
// untrusted DetectedComponents.
package recognizer

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"mcp-meal-analyzer/internal/apperr"
	"mcp-meal-analyzer/internal/models"
)

// Extraction modes.
const (
	ModeQuick    = "quick"
	ModeDetailed = "detailed"
)

// NormalizeMode maps unknown or empty modes to ModeDetailed.
func NormalizeMode(mode string) string {
	if strings.EqualFold(strings.TrimSpace(mode), ModeQuick) {
		return ModeQuick
	}
	return ModeDetailed
}

// Input is either a text description or an image. Image wins when both are set.
type Input struct {
	Text  string
	Image []byte
	MIME  string
}

// IsImage reports whether the input carries image bytes.
func (in Input) IsImage() bool { return len(in.Image) > 0 }

// Validate rejects empty input.
func (in Input) Validate() error {
	if !in.IsImage() && strings.TrimSpace(in.Text) == "" {
		return apperr.User("either a meal description or an image is required")
	}
	return nil
}

// ImageMIME returns the declared MIME type, sniffing the bytes when absent.
func (in Input) ImageMIME() string {
	if in.MIME != "" {
		return in.MIME
	}
	return http.DetectContentType(in.Image)
}

// Recognizer extracts components. Failures are reported as
// apperr.RecognitionError; an empty slice is a valid result.
type Recognizer interface {
	Extract(ctx context.Context, in Input, locale, mode string) ([]models.DetectedComponent, error)
}

// DecodeDataURI parses "data:image/jpeg;base64,..." or plain base64 into an
// image Input.
func DecodeDataURI(s string) (Input, error) {
	s = strings.TrimSpace(s)
	mime := ""
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.HasSuffix(s[:comma], ";base64") {
			return Input{}, apperr.User("invalid image data URI")
		}
		mime = strings.TrimSuffix(strings.TrimPrefix(s[:comma], "data:"), ";base64")
		s = s[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(data) == 0 {
		return Input{}, apperr.User("image is not valid base64")
	}
	return Input{Image: data, MIME: mime}, nil
}
