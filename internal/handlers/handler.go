package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lookbook-studio/internal/album"
	"lookbook-studio/internal/download"
	"lookbook-studio/internal/lookbook"
	"lookbook-studio/internal/session"
	"lookbook-studio/internal/upload"
)

// Messenger is the part of the Telegram client the handler needs.
type Messenger interface {
	SendTyping(chatID int64)
	SendText(chatID int64, text string) error
	SendMessage(chatID int64, text string) (int, error)
	SendTextWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error)
	EditText(chatID int64, messageID int, text string) error
	AnswerCallback(callbackID, text string, alert bool) error
	SendPhotoDataURL(chatID int64, dataURL string, caption string) error
	SendDocumentDataURL(chatID int64, name, dataURL string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, string, error)
}

type Options struct {
	Telegram         Messenger
	Sessions         *session.Store[int64]
	Logger           *slog.Logger
	DownloadInterval time.Duration
	MaxImageEdge     int
	// AlbumDebounce is how long to wait for the rest of an album; zero uses
	// album.DefaultDebounce.
	AlbumDebounce time.Duration
}

type Handler struct {
	tg               Messenger
	sessions         *session.Store[int64]
	logger           *slog.Logger
	downloadInterval time.Duration
	maxImageEdge     int
	albums           *album.Collector
}

const albumUploadTimeout = 2 * time.Minute

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		tg:               opts.Telegram,
		sessions:         opts.Sessions,
		logger:           logger,
		downloadInterval: opts.DownloadInterval,
		maxImageEdge:     opts.MaxImageEdge,
	}
	h.albums = album.New(album.Options{Debounce: opts.AlbumDebounce, OnFlush: h.flushAlbum})
	return h
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, msg)
	}

	var fileID string
	switch {
	case len(msg.Photo) > 0:
		fileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		fileID = msg.Document.FileID
	}
	if fileID != "" {
		if msg.MediaGroupID != "" {
			h.albums.Add(album.Photo{
				ChatID:  chatID,
				AlbumID: msg.MediaGroupID,
				FileID:  fileID,
				Caption: msg.Caption,
			})
			return nil
		}
		return h.handleUpload(ctx, chatID, fileID, msg.Caption)
	}

	if text := strings.TrimSpace(msg.Text); text != "" {
		return h.handleStyle(chatID, text)
	}

	return nil
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start", "help":
		return h.tg.SendText(chatID,
			"👗 AI Fashion Lookbook\n\n"+
				"Send a clothing photo and get three campaign looks: studio, street and editorial.\n\n"+
				"Commands:\n"+
				"/style <text> - campaign style, e.g. minimalist luxury\n"+
				"/generate - create the lookbook\n"+
				"/download - receive all looks as files\n"+
				"/clear - start over",
		)
	case "style":
		return h.handleStyle(chatID, msg.CommandArguments())
	case "generate":
		return h.generate(ctx, chatID)
	case "download":
		return h.downloadAll(ctx, chatID)
	case "clear":
		if !h.sessions.Reset(chatID) {
			return h.tg.SendText(chatID, "⏳ A lookbook is still being generated. Try again when it is done.")
		}
		return h.tg.SendText(chatID, "✅ Cleared. Send a new clothing photo.")
	default:
		return h.tg.SendText(chatID, "❌ Unknown command. Use /help.")
	}
}

func (h *Handler) handleUpload(ctx context.Context, chatID int64, fileID, caption string) error {
	h.tg.SendTyping(chatID)

	raw, _, err := h.tg.DownloadFile(ctx, fileID)
	if err != nil {
		h.logger.Error("photo download failed", "err", err)
		return h.tg.SendText(chatID, "❌ Could not download the photo.")
	}

	img, err := upload.Decode(raw, upload.Options{MaxEdge: h.maxImageEdge})
	if err != nil {
		h.logger.Warn("upload rejected", "err", err)
		return h.tg.SendText(chatID, "❌ That file does not look like an image.")
	}

	sess := h.sessions.Get(chatID)
	err = sess.Upload(img)
	if errors.Is(err, lookbook.ErrSessionRetired) {
		sess = h.sessions.Get(chatID)
		err = sess.Upload(img)
	}
	if err != nil {
		if errors.Is(err, lookbook.ErrRunInProgress) {
			return h.tg.SendText(chatID, "⏳ A lookbook is being generated. Send the new photo when it is done.")
		}
		return err
	}
	if caption = strings.TrimSpace(caption); caption != "" {
		sess.SetStyle(caption)
	}

	_, err = h.tg.SendTextWithKeyboard(chatID, uploadText(sess.Snapshot()), mainKeyboard(false))
	return err
}

// flushAlbum uploads the first photo of an album; a lookbook is built from a
// single garment.
func (h *Handler) flushAlbum(a album.Album) {
	ctx, cancel := context.WithTimeout(context.Background(), albumUploadTimeout)
	defer cancel()

	if n := len(a.Photos); n > 1 {
		_ = h.tg.SendText(a.ChatID, fmt.Sprintf("ℹ️ Got %d photos. Using the first one.", n))
	}

	first := a.First()
	if err := h.handleUpload(ctx, a.ChatID, first.FileID, a.Caption); err != nil {
		h.logger.Error("album upload failed", "chat_id", a.ChatID, "err", err)
	}
}

func (h *Handler) handleStyle(chatID int64, style string) error {
	style = strings.TrimSpace(style)
	sess := h.sessions.Get(chatID)
	sess.SetStyle(style)

	if style == "" {
		return h.tg.SendText(chatID, "✅ Style cleared.")
	}
	return h.tg.SendText(chatID, fmt.Sprintf("✅ Style set: %s", style))
}

func (h *Handler) generate(ctx context.Context, chatID int64) error {
	sess := h.sessions.Get(chatID)
	if !sess.Snapshot().HasImage {
		return h.tg.SendText(chatID, "📷 Send a clothing photo first.")
	}

	statusID, err := h.tg.SendMessage(chatID, "⏳ Processing...")
	if err != nil {
		return err
	}

	obs := lookbook.ObserverFuncs{
		Phase: func(phase lookbook.Phase, status string) {
			if phase == lookbook.PhaseIdle || status == "" {
				return
			}
			h.tg.SendTyping(chatID)
			if err := h.tg.EditText(chatID, statusID, "⏳ "+status); err != nil {
				h.logger.Debug("status edit failed", "err", err)
			}
		},
		Variation: func(v lookbook.Variation, _ []lookbook.Variation) {
			if err := h.tg.SendPhotoDataURL(chatID, v.ImageURL, v.Label); err != nil {
				h.logger.Error("send variation failed", "category", v.Category, "err", err)
			}
		},
	}

	result, err := sess.Generate(ctx, obs)
	switch {
	case errors.Is(err, lookbook.ErrRunInProgress):
		return h.tg.EditText(chatID, statusID, "⏳ A lookbook is already being generated.")
	case errors.Is(err, lookbook.ErrNoImage), errors.Is(err, lookbook.ErrSessionRetired):
		return h.tg.EditText(chatID, statusID, "📷 Send a clothing photo first.")
	case err != nil:
		return err
	}

	if result.Failed() {
		return h.tg.EditText(chatID, statusID, "❌ "+result.Error)
	}

	_ = h.tg.EditText(chatID, statusID, fmt.Sprintf("✅ %d looks ready", len(result.Variations)))
	_, err = h.tg.SendTextWithKeyboard(chatID, doneText(result), mainKeyboard(true))
	return err
}

func (h *Handler) downloadAll(ctx context.Context, chatID int64) error {
	sess, ok := h.sessions.Lookup(chatID)
	if !ok || len(sess.Snapshot().Variations) == 0 {
		return h.tg.SendText(chatID, "Nothing to download yet. Use /generate first.")
	}

	saver := download.SaverFunc(func(ctx context.Context, name string, v lookbook.Variation) error {
		return h.tg.SendDocumentDataURL(chatID, name, v.ImageURL)
	})
	download.All(ctx, sess.Snapshot().Variations, saver, download.Options{
		Interval: h.downloadInterval,
		Logger:   h.logger,
	})
	return nil
}

func uploadText(st lookbook.State) string {
	var b strings.Builder
	b.WriteString("📷 Photo saved.\n")
	if st.Style != "" {
		b.WriteString("Style: " + truncateLine(st.Style, 80) + "\n")
	} else {
		b.WriteString("Style: (none) - send text or /style to set one\n")
	}
	b.WriteString("\nPress Generate when ready.")
	return b.String()
}

func doneText(result lookbook.RunResult) string {
	var b strings.Builder
	b.WriteString("✅ Campaign results\n")
	if result.Analysis != "" {
		b.WriteString("\nGarment analysis: \"" + result.Analysis + "\"\n")
	}
	b.WriteString("\n")
	for _, v := range result.Variations {
		b.WriteString("• " + v.Label + "\n")
	}
	return strings.TrimSpace(b.String())
}

func truncateLine(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
