package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lookbook-studio/internal/download"
	"lookbook-studio/internal/lookbook"
	"lookbook-studio/internal/session"
	"lookbook-studio/internal/upload"
)

//go:embed static/*
var staticFS embed.FS

const sessionCookie = "lookbook_sid"

type serverOptions struct {
	Sessions         *session.Store[string]
	Logger           *slog.Logger
	MaxUploadBytes   int64
	MaxImageEdge     int
	OutputDir        string
	DownloadInterval time.Duration
}

type server struct {
	sessions         *session.Store[string]
	logger           *slog.Logger
	maxUploadBytes   int64
	maxImageEdge     int
	outputDir        string
	downloadInterval time.Duration
	upgrader         websocket.Upgrader

	// saves tracks output-dir writes; saveCtx is cancelled by drain.
	saves      sync.WaitGroup
	saveCtx    context.Context
	cancelSave context.CancelFunc
}

type apiError struct {
	Error string `json:"error"`
}

func newServer(opts serverOptions) *server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 25 << 20
	}
	saveCtx, cancelSave := context.WithCancel(context.Background())

	return &server{
		sessions:         opts.Sessions,
		logger:           logger,
		maxUploadBytes:   maxUpload,
		maxImageEdge:     opts.MaxImageEdge,
		outputDir:        opts.OutputDir,
		downloadInterval: opts.DownloadInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 << 10,
		},
		saveCtx:    saveCtx,
		cancelSave: cancelSave,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/style", s.handleStyle)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/generate/ws", s.handleGenerateStream)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/variations/{id}", s.handleVariation)

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /", http.FileServer(http.FS(staticSub)))
	return mux
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "missing image"})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "failed to read image"})
		return
	}

	img, err := upload.Decode(raw, upload.Options{MaxEdge: s.maxImageEdge})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}

	id := s.sessionID(w, r)
	sess := s.sessions.Get(id)
	err = sess.Upload(img)
	if errors.Is(err, lookbook.ErrSessionRetired) {
		sess = s.sessions.Get(id)
		err = sess.Upload(img)
	}
	if err != nil {
		writeJSON(w, statusFor(err), apiError{Error: err.Error()})
		return
	}
	if style, ok := r.MultipartForm.Value["style"]; ok && len(style) > 0 {
		sess.SetStyle(style[0])
	}

	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *server) handleStyle(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Get(s.sessionID(w, r))
	sess.SetStyle(r.FormValue("style"))
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Get(s.sessionID(w, r))
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Get(s.sessionID(w, r))

	result, err := sess.Generate(r.Context(), nil)
	if err != nil {
		writeJSON(w, statusFor(err), apiError{Error: err.Error()})
		return
	}
	s.afterRun(result)

	status := http.StatusOK
	if result.Failed() {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}

func (s *server) handleVariation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Lookup(s.sessionID(w, r))
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "variation not found"})
		return
	}

	v, ok := sess.Variation(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "variation not found"})
		return
	}

	mimeType, raw, err := download.DecodeDataURL(v.ImageURL)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "corrupt variation"})
		return
	}

	w.Header().Set("content-type", mimeType)
	w.Header().Set("content-disposition", `attachment; filename="`+download.FileName(v.Category)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// afterRun mirrors a successful run into the output directory, if configured.
func (s *server) afterRun(result lookbook.RunResult) {
	if s.outputDir == "" || result.Failed() {
		return
	}

	variations := append([]lookbook.Variation(nil), result.Variations...)
	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		download.All(s.saveCtx, variations, download.DirSaver{Dir: s.outputDir}, download.Options{
			Interval: s.downloadInterval,
			Logger:   s.logger,
		})
	}()
}

// drain waits for pending output-dir saves. If ctx ends first, the remaining
// saves are cancelled between files and drain returns once they stop.
func (s *server) drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.saves.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.cancelSave()
		<-done
	}
	s.cancelSave()
}

// sessionID returns the caller's session cookie, issuing a new one if needed.
func (s *server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, newSessionCookie(id))
	return id
}

func newSessionCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, lookbook.ErrNoImage):
		return http.StatusBadRequest
	case errors.Is(err, lookbook.ErrRunInProgress), errors.Is(err, lookbook.ErrSessionRetired):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "dur_ms", time.Since(start).Milliseconds())
	})
}
