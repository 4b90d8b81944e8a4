package lookbook

import "fmt"

// StyleCategory selects the campaign styling of one variation.
type StyleCategory string

const (
	CategoryStudio    StyleCategory = "studio"
	CategoryStreet    StyleCategory = "street"
	CategoryLifestyle StyleCategory = "lifestyle"
	CategoryEditorial StyleCategory = "editorial"
)

var categoryLabels = map[StyleCategory]string{
	CategoryStudio:    "High-fashion studio",
	CategoryStreet:    "Urban street style",
	CategoryLifestyle: "Casual lifestyle",
	CategoryEditorial: "Professional editorial",
}

// runOrder is the fixed order in which a run attempts categories.
var runOrder = []StyleCategory{
	CategoryStudio,
	CategoryStreet,
	CategoryEditorial,
}

// Categories returns the categories a run attempts, in order.
func Categories() []StyleCategory {
	out := make([]StyleCategory, len(runOrder))
	copy(out, runOrder)
	return out
}

// Label is the display name, also embedded into prompts and file names.
func (c StyleCategory) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

func (c StyleCategory) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

func ParseCategory(value string) (StyleCategory, error) {
	c := StyleCategory(value)
	if !c.Valid() {
		return "", fmt.Errorf("unknown style category %q", value)
	}
	return c, nil
}
