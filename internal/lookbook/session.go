package lookbook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Analyzer Analyzer
	Stylist  Stylist
	Logger   *slog.Logger

	// Parallel issues the category requests concurrently. Results are still
	// published in category order.
	Parallel bool
	// RunTimeout bounds one whole run. Zero means no limit beyond ctx.
	RunTimeout time.Duration

	NewID func() string
	Now   func() time.Time
}

// Session holds the state of one user: the uploaded image, style guidance
// and the outcome of the latest run. Only one run may be in flight.
type Session struct {
	analyzer   Analyzer
	stylist    Stylist
	logger     *slog.Logger
	parallel   bool
	runTimeout time.Duration
	newID      func() string
	now        func() time.Time

	mu         sync.Mutex
	image      *UploadedImage
	style      string
	processing bool
	phase      Phase
	status     string
	variations []Variation
	analysis   string
	errMsg     string
	updatedAt  time.Time
	retired    bool
}

func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Session{
		analyzer:   opts.Analyzer,
		stylist:    opts.Stylist,
		logger:     logger,
		parallel:   opts.Parallel,
		runTimeout: opts.RunTimeout,
		newID:      newID,
		now:        now,
		phase:      PhaseIdle,
		updatedAt:  now(),
	}
}

// Upload replaces the image and clears the previous run's results.
func (s *Session) Upload(img UploadedImage) error {
	if strings.TrimSpace(img.Data) == "" || strings.TrimSpace(img.MimeType) == "" {
		return ErrNoImage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retired {
		return ErrSessionRetired
	}
	if s.processing {
		return ErrRunInProgress
	}

	s.image = &img
	s.variations = nil
	s.analysis = ""
	s.errMsg = ""
	s.phase = PhaseIdle
	s.updatedAt = s.now()
	return nil
}

func (s *Session) SetStyle(style string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.style = strings.TrimSpace(style)
	s.updatedAt = s.now()
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		HasImage:   s.image != nil,
		Style:      s.style,
		Processing: s.processing,
		Phase:      s.phase,
		Status:     s.status,
		Variations: append([]Variation(nil), s.variations...),
		Analysis:   s.analysis,
		Error:      s.errMsg,
	}
	if s.image != nil {
		img := *s.image
		st.Image = &img
	}
	return st
}

// Variation looks up a variation of the latest run by ID.
func (s *Session) Variation(id string) (Variation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.variations {
		if v.ID == id {
			return v, true
		}
	}
	return Variation{}, false
}

// Retire closes the session to further uploads and runs. It fails while a
// run is in flight; the check and the close happen under one lock so no run
// can slip in between.
func (s *Session) Retire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processing {
		return false
	}
	s.retired = true
	return true
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Generate runs analysis followed by one generation per category. It returns
// an error only when the run could not start (ErrNoImage, ErrRunInProgress,
// ErrSessionRetired); run failures are reported in RunResult.Err.
func (s *Session) Generate(ctx context.Context, obs Observer) (result RunResult, err error) {
	if obs == nil {
		obs = ObserverFuncs{}
	}

	img, style, err := s.begin()
	if err != nil {
		return RunResult{}, err
	}

	// OnDone is delivered after the idle transition.
	completed := false
	defer func() {
		s.end(obs)
		if completed {
			obs.OnDone(result)
		}
	}()

	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	s.setPhase(obs, PhaseAnalyzing, "Analyzing garment...")

	description, err := s.analyzer.Analyze(ctx, img)
	if err != nil {
		s.logger.Error("garment analysis failed", "err", err)
		result, completed = s.finish(RunResult{Err: err}), true
		return result, nil
	}

	s.mu.Lock()
	s.analysis = description
	s.mu.Unlock()

	var outcomes []Outcome
	if s.parallel {
		outcomes = s.generateParallel(ctx, obs, img, description, style)
	} else {
		outcomes = s.generateSequential(ctx, obs, img, description, style)
	}

	run := RunResult{
		Variations: reduce(outcomes),
		Analysis:   description,
		Outcomes:   outcomes,
	}
	if len(run.Variations) == 0 {
		run.Err = ErrNoVariations
	}
	result, completed = s.finish(run), true
	return result, nil
}

func (s *Session) generateSequential(ctx context.Context, obs Observer, img UploadedImage, description, style string) []Outcome {
	categories := Categories()
	outcomes := make([]Outcome, 0, len(categories))

	for _, cat := range categories {
		s.setPhase(obs, PhaseGenerating, fmt.Sprintf("Generating %s look...", cat.Label()))

		o := s.attempt(ctx, img, description, style, cat)
		outcomes = append(outcomes, o)
		if o.OK() {
			s.publish(obs, *o.Variation)
		}
	}
	return outcomes
}

// generateParallel starts every category at once. A category is published
// once it and all categories before it have finished, so observers see the
// same ordering as in sequential mode.
func (s *Session) generateParallel(ctx context.Context, obs Observer, img UploadedImage, description, style string) []Outcome {
	categories := Categories()
	outcomes := make([]Outcome, len(categories))
	done := make([]bool, len(categories))

	s.setPhase(obs, PhaseGenerating, fmt.Sprintf("Generating %d looks...", len(categories)))

	var (
		mu   sync.Mutex
		next int
		g    errgroup.Group
	)
	for i, cat := range categories {
		g.Go(func() error {
			o := s.attempt(ctx, img, description, style, cat)

			mu.Lock()
			defer mu.Unlock()

			outcomes[i] = o
			done[i] = true
			for next < len(categories) && done[next] {
				if outcomes[next].OK() {
					s.publish(obs, *outcomes[next].Variation)
				}
				next++
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *Session) attempt(ctx context.Context, img UploadedImage, description, style string, cat StyleCategory) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Category: cat, Err: err}
	}

	rendering, err := s.stylist.Stylize(ctx, img, description, style, cat)
	if err != nil {
		s.logger.Error("variation failed", "category", cat, "err", err)
		return Outcome{Category: cat, Err: err}
	}

	v := Variation{
		ID:        s.newID(),
		ImageURL:  rendering.ImageURL,
		Prompt:    rendering.Prompt,
		Category:  cat,
		Label:     cat.Label(),
		CreatedAt: s.now(),
	}
	s.logger.Info("variation generated", "category", cat, "id", v.ID)
	return Outcome{Category: cat, Variation: &v}
}

func (s *Session) begin() (UploadedImage, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retired {
		return UploadedImage{}, "", ErrSessionRetired
	}
	if s.processing {
		return UploadedImage{}, "", ErrRunInProgress
	}
	if s.image == nil {
		return UploadedImage{}, "", ErrNoImage
	}

	s.processing = true
	s.errMsg = ""
	s.variations = nil
	s.analysis = ""
	s.updatedAt = s.now()
	return *s.image, s.style, nil
}

// end runs on every exit path of Generate.
func (s *Session) end(obs Observer) {
	s.mu.Lock()
	s.processing = false
	s.status = ""
	s.phase = PhaseIdle
	s.updatedAt = s.now()
	s.mu.Unlock()

	obs.OnPhase(PhaseIdle, "")
}

func (s *Session) finish(result RunResult) RunResult {
	result.Error = UserMessage(result.Err)

	s.mu.Lock()
	s.errMsg = result.Error
	s.mu.Unlock()

	if result.Failed() {
		s.logger.Warn("run failed", "err", result.Err, "variations", len(result.Variations))
	} else {
		s.logger.Info("run finished", "variations", len(result.Variations))
	}

	return result
}

func (s *Session) setPhase(obs Observer, phase Phase, status string) {
	s.mu.Lock()
	s.phase = phase
	s.status = status
	s.mu.Unlock()

	obs.OnPhase(phase, status)
}

func (s *Session) publish(obs Observer, v Variation) {
	s.mu.Lock()
	s.variations = append(s.variations, v)
	visible := append([]Variation(nil), s.variations...)
	s.mu.Unlock()

	obs.OnVariation(v, visible)
}
