package lookbook

import (
	"context"
	"errors"
	"strings"

	"lookbook-studio/internal/gemini"
)

const analysisInstruction = "Describe this clothing item in detail. Focus on the cut, fabric, color, and style. Keep it concise, e.g., 'A navy blue tailored silk blazer with gold buttons'."

// Analyzer describes the garment in an uploaded photo.
type Analyzer interface {
	Analyze(ctx context.Context, img UploadedImage) (string, error)
}

type describer interface {
	Describe(ctx context.Context, model string, image gemini.ImageInput, instruction string) (gemini.Response, error)
}

type GeminiAnalyzer struct {
	client describer
	model  string
}

func NewGeminiAnalyzer(client describer, model string) *GeminiAnalyzer {
	return &GeminiAnalyzer{client: client, model: model}
}

// Analyze returns the model's description, or "clothing item" when the model
// sent no text. Errors are returned as-is; a 403 becomes *PermissionError.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, img UploadedImage) (string, error) {
	resp, err := a.client.Describe(ctx, a.model, toImageInput(img), analysisInstruction)
	if err != nil {
		return "", translatePermission(err, a.model)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return defaultDescription, nil
	}
	return text, nil
}

func toImageInput(img UploadedImage) gemini.ImageInput {
	return gemini.ImageInput{DataBase64: img.Data, MimeType: img.MimeType}
}

func translatePermission(err error, model string) error {
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) && apiErr.IsPermissionDenied() {
		return &PermissionError{Model: model, Err: err}
	}
	// transports that do not surface a status code still mention it
	if apiErr == nil && strings.Contains(err.Error(), "403") {
		return &PermissionError{Model: model, Err: err}
	}
	return err
}
