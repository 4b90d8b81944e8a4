package lookbook

import (
	"context"
	"fmt"
	"strings"

	"lookbook-studio/internal/gemini"
)

const defaultAspectRatio = "3:4"

// Stylist renders the garment in one style category.
type Stylist interface {
	Stylize(ctx context.Context, img UploadedImage, description, style string, category StyleCategory) (Rendering, error)
}

type stylizer interface {
	Stylize(ctx context.Context, model string, image gemini.ImageInput, prompt string, aspectRatio string) (gemini.Response, error)
}

type GeminiStylist struct {
	client      stylizer
	model       string
	aspectRatio string
}

func NewGeminiStylist(client stylizer, model, aspectRatio string) *GeminiStylist {
	if strings.TrimSpace(aspectRatio) == "" {
		aspectRatio = defaultAspectRatio
	}
	return &GeminiStylist{client: client, model: model, aspectRatio: aspectRatio}
}

func (s *GeminiStylist) Stylize(ctx context.Context, img UploadedImage, description, style string, category StyleCategory) (Rendering, error) {
	prompt := BuildPrompt(description, style, category)

	resp, err := s.client.Stylize(ctx, s.model, toImageInput(img), prompt, s.aspectRatio)
	if err != nil {
		return Rendering{}, translatePermission(err, s.model)
	}

	if len(resp.Images) == 0 {
		return Rendering{}, &NoImageError{Feedback: strings.TrimSpace(resp.Text)}
	}

	return Rendering{ImageURL: resp.Images[0], Prompt: prompt}, nil
}

// BuildPrompt embeds the description and category label; the style sentence
// is left out when style is blank.
func BuildPrompt(description, style string, category StyleCategory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A professional %s fashion photograph. ", category.Label())
	fmt.Fprintf(&b, "A diverse model is wearing this exact clothing item: %s. ", strings.TrimSpace(description))
	if style = strings.TrimSpace(style); style != "" {
		fmt.Fprintf(&b, "Style: %s. ", style)
	}
	b.WriteString("High resolution, cinematic lighting, professional editorial quality.")
	return b.String()
}
