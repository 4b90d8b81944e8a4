package download

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lookbook-studio/internal/lookbook"
)

const DefaultInterval = 500 * time.Millisecond

// Saver persists one variation under the given file name.
type Saver interface {
	Save(ctx context.Context, name string, v lookbook.Variation) error
}

type SaverFunc func(ctx context.Context, name string, v lookbook.Variation) error

func (f SaverFunc) Save(ctx context.Context, name string, v lookbook.Variation) error {
	return f(ctx, name, v)
}

type Options struct {
	// Interval is the pause after each file; zero means DefaultInterval and a
	// negative value disables pausing.
	Interval time.Duration
	Logger   *slog.Logger
}

// Slug lower-cases the category label and replaces whitespace runs with "-".
func Slug(category lookbook.StyleCategory) string {
	return strings.Join(strings.Fields(strings.ToLower(category.Label())), "-")
}

func FileName(category lookbook.StyleCategory) string {
	return fmt.Sprintf("lookbook-%s.png", Slug(category))
}

// All saves every variation in list order, pausing opts.Interval after each
// one. Individual failures are logged and skipped. It returns the number of
// save attempts made, which is short of len(variations) only when ctx ends.
func All(ctx context.Context, variations []lookbook.Variation, saver Saver, opts Options) int {
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	attempted := 0
	for _, v := range variations {
		if ctx.Err() != nil {
			break
		}

		name := FileName(v.Category)
		attempted++
		if err := saver.Save(ctx, name, v); err != nil {
			logger.Warn("download failed", "file", name, "id", v.ID, "err", err)
		}

		if interval > 0 {
			select {
			case <-ctx.Done():
				return attempted
			case <-time.After(interval):
			}
		}
	}
	return attempted
}

// DecodeDataURL splits a data URL into its MIME type and decoded bytes.
func DecodeDataURL(value string) (string, []byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil, errors.New("empty data url")
	}

	mimeType := "image/png"
	payload := value
	if strings.HasPrefix(value, "data:") {
		meta, data, ok := strings.Cut(value, ",")
		if !ok {
			return "", nil, errors.New("invalid data url")
		}
		if m, _, _ := strings.Cut(strings.TrimPrefix(meta, "data:"), ";"); strings.TrimSpace(m) != "" {
			mimeType = strings.TrimSpace(m)
		}
		payload = data
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode base64: %w", err)
	}
	return mimeType, raw, nil
}

// DirSaver writes files into Dir, creating it on first use.
type DirSaver struct {
	Dir string
}

func (d DirSaver) Save(ctx context.Context, name string, v lookbook.Variation) error {
	_, raw, err := DecodeDataURL(v.ImageURL)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	return os.WriteFile(filepath.Join(d.Dir, filepath.Base(name)), raw, 0o644)
}
