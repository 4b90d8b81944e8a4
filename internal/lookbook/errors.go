package lookbook

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	ErrNoImage       = errors.New("no image uploaded")
	ErrRunInProgress = errors.New("generation already in progress")
	ErrNoVariations  = errors.New("no variations produced")
	// ErrSessionRetired is returned by a session that was reset or expired
	// while a caller still held it.
	ErrSessionRetired = errors.New("session was reset")
)

const (
	noVariationsMessage = "Failed to generate variations. Try a different image or simpler brand info."
	unexpectedMessage   = "An unexpected error occurred."
	noImageMessage      = "The model could not generate an image. This usually happens if the input image or prompt triggers safety filters."
	defaultDescription  = "clothing item"
)

// PermissionError replaces a 403 from the inference endpoint.
type PermissionError struct {
	Model string
	Err   error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("Permission Denied: Ensure your API key has access to the %s model.", modelDisplayName(e.Model))
}

func (e *PermissionError) Unwrap() error {
	return e.Err
}

// NoImageError is returned when an image model answered without an image.
// Feedback is whatever text the model sent instead.
type NoImageError struct {
	Feedback string
}

func (e *NoImageError) Error() string {
	if strings.TrimSpace(e.Feedback) != "" {
		return e.Feedback
	}
	return noImageMessage
}

// UserMessage maps a run error to the text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNoVariations) {
		return noVariationsMessage
	}

	var perm *PermissionError
	if errors.As(err, &perm) {
		return perm.Error()
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return unexpectedMessage
}

// modelDisplayName turns "gemini-2.5-flash-image" into "Gemini 2.5 Flash Image".
func modelDisplayName(model string) string {
	model = strings.TrimSpace(strings.TrimPrefix(model, "models/"))
	if model == "" {
		return "requested"
	}

	words := strings.Split(model, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
