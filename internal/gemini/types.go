package gemini

import (
	"fmt"
	"net/http"
)

type ImageInput struct {
	DataBase64 string
	MimeType   string
}

// Response holds the concatenated text parts and every inline image, as data
// URLs, in the order the model returned them.
type Response struct {
	Text   string
	Images []string
}

// APIError is returned for HTTP responses with status >= 400.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API %s: %s", e.Status, e.Body)
}

func (e *APIError) IsPermissionDenied() bool {
	return e.StatusCode == http.StatusForbidden
}
