package lookbook

import (
	"fmt"
	"time"
)

type UploadedImage struct {
	Data     string // base64, no data URL prefix
	MimeType string
}

func (img UploadedImage) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.Data)
}

// Variation is one generated campaign photo. It only exists for a successful
// generation call and is never modified afterwards.
type Variation struct {
	ID        string        `json:"id"`
	ImageURL  string        `json:"url"`
	Prompt    string        `json:"prompt"`
	Category  StyleCategory `json:"category"`
	Label     string        `json:"label"`
	CreatedAt time.Time     `json:"created_at"`
}

// Rendering is what a Stylist returns for one category.
type Rendering struct {
	ImageURL string
	Prompt   string
}

// Outcome captures one category attempt: either Variation or Err is set.
type Outcome struct {
	Category  StyleCategory
	Variation *Variation
	Err       error
}

func (o Outcome) OK() bool {
	return o.Err == nil && o.Variation != nil
}

// RunResult is the aggregate of one generation run. Error holds the
// user-facing message when Err is set.
type RunResult struct {
	Variations []Variation `json:"variations"`
	Analysis   string      `json:"analysis,omitempty"`
	Outcomes   []Outcome   `json:"-"`
	Err        error       `json:"-"`
	Error      string      `json:"error,omitempty"`
}

func (r RunResult) Failed() bool {
	return r.Err != nil
}

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseAnalyzing  Phase = "analyzing"
	PhaseGenerating Phase = "generating"
)

// State is a point-in-time copy of a Session.
type State struct {
	HasImage   bool           `json:"has_image"`
	Image      *UploadedImage `json:"-"`
	Style      string         `json:"style"`
	Processing bool           `json:"processing"`
	Phase      Phase          `json:"phase"`
	Status     string         `json:"status,omitempty"`
	Variations []Variation    `json:"variations"`
	Analysis   string         `json:"analysis,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// reduce keeps the successful outcomes in attempt order.
func reduce(outcomes []Outcome) []Variation {
	out := make([]Variation, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			out = append(out, *o.Variation)
		}
	}
	return out
}
