package handlers

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookbook-studio/internal/lookbook"
	"lookbook-studio/internal/session"
)

type sentDoc struct {
	name    string
	dataURL string
}

type fakeMessenger struct {
	mu     sync.Mutex
	texts  []string
	edits  []string
	photos []string
	docs   []sentDoc
	nextID int
	file   []byte
}

func (f *fakeMessenger) SendTyping(int64) {}

func (f *fakeMessenger) SendText(_ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) SendMessage(_ int64, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeMessenger) SendTextWithKeyboard(chatID int64, text string, _ tgbotapi.InlineKeyboardMarkup) (int, error) {
	return f.SendMessage(chatID, text)
}

func (f *fakeMessenger) EditText(_ int64, _ int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeMessenger) AnswerCallback(string, string, bool) error { return nil }

func (f *fakeMessenger) SendPhotoDataURL(_ int64, _ string, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, caption)
	return nil
}

func (f *fakeMessenger) SendDocumentDataURL(_ int64, name, dataURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, sentDoc{name: name, dataURL: dataURL})
	return nil
}

func (f *fakeMessenger) DownloadFile(context.Context, string) ([]byte, string, error) {
	return f.file, "image/png", nil
}

type stubAnalyzer struct{ err error }

func (s stubAnalyzer) Analyze(context.Context, lookbook.UploadedImage) (string, error) {
	return "a denim jacket", s.err
}

type stubStylist struct {
	fail map[lookbook.StyleCategory]bool
}

func (s stubStylist) Stylize(_ context.Context, _ lookbook.UploadedImage, description, style string, c lookbook.StyleCategory) (lookbook.Rendering, error) {
	if s.fail[c] {
		return lookbook.Rendering{}, errors.New("boom")
	}
	return lookbook.Rendering{ImageURL: "data:image/png;base64,QUJD", Prompt: lookbook.BuildPrompt(description, style, c)}, nil
}

func newTestHandler(t *testing.T, a lookbook.Analyzer, s lookbook.Stylist) (*Handler, *fakeMessenger, *session.Store[int64]) {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))

	tg := &fakeMessenger{file: buf.Bytes()}
	store := session.NewStore[int64](session.Options{New: func() *lookbook.Session {
		return lookbook.NewSession(lookbook.Options{Analyzer: a, Stylist: s})
	}})

	h := New(Options{Telegram: tg, Sessions: store, DownloadInterval: -1, AlbumDebounce: 10 * time.Millisecond})
	return h, tg, store
}

func command(chatID int64, text string) tgbotapi.Update {
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

func photo(chatID int64, caption string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: chatID},
		Caption: caption,
		Photo:   []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	}}
}

func TestUploadGenerateDownload(t *testing.T) {
	h, tg, store := newTestHandler(t, stubAnalyzer{}, stubStylist{})
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, photo(7, "90s retro")))
	st := store.Get(7).Snapshot()
	require.True(t, st.HasImage)
	assert.Equal(t, "90s retro", st.Style)

	require.NoError(t, h.HandleUpdate(ctx, command(7, "/generate")))
	assert.Equal(t, []string{"High-fashion studio", "Urban street style", "Professional editorial"}, tg.photos)
	assert.Contains(t, tg.edits, "⏳ Analyzing garment...")
	assert.Contains(t, tg.edits, "✅ 3 looks ready")

	require.NoError(t, h.HandleUpdate(ctx, command(7, "/download")))
	require.Len(t, tg.docs, 3)
	assert.Equal(t, "lookbook-high-fashion-studio.png", tg.docs[0].name)
	assert.Equal(t, "lookbook-urban-street-style.png", tg.docs[1].name)
	assert.Equal(t, "lookbook-professional-editorial.png", tg.docs[2].name)
}

func TestGenerateWithoutPhoto(t *testing.T) {
	h, tg, _ := newTestHandler(t, stubAnalyzer{}, stubStylist{})

	require.NoError(t, h.HandleUpdate(context.Background(), command(1, "/generate")))
	assert.Equal(t, []string{"📷 Send a clothing photo first."}, tg.texts)
}

func TestGenerateTotalFailure(t *testing.T) {
	all := map[lookbook.StyleCategory]bool{
		lookbook.CategoryStudio:    true,
		lookbook.CategoryStreet:    true,
		lookbook.CategoryEditorial: true,
	}
	h, tg, _ := newTestHandler(t, stubAnalyzer{}, stubStylist{fail: all})
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, photo(1, "")))
	require.NoError(t, h.HandleUpdate(ctx, command(1, "/generate")))

	assert.Empty(t, tg.photos)
	assert.Equal(t, "❌ Failed to generate variations. Try a different image or simpler brand info.", tg.edits[len(tg.edits)-1])
}

func TestStyleCommandAndClear(t *testing.T) {
	h, tg, store := newTestHandler(t, stubAnalyzer{}, stubStylist{})
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, command(3, "/style moody editorial")))
	assert.Equal(t, "moody editorial", store.Get(3).Snapshot().Style)

	require.NoError(t, h.HandleUpdate(ctx, command(3, "/clear")))
	_, ok := store.Lookup(3)
	assert.False(t, ok)
	assert.Equal(t, "✅ Cleared. Send a new clothing photo.", tg.texts[len(tg.texts)-1])
}

func TestDownloadWithoutResults(t *testing.T) {
	h, tg, _ := newTestHandler(t, stubAnalyzer{}, stubStylist{})

	require.NoError(t, h.HandleUpdate(context.Background(), command(5, "/download")))
	assert.Empty(t, tg.docs)
	assert.Equal(t, []string{"Nothing to download yet. Use /generate first."}, tg.texts)
}

func TestCallbackGenerate(t *testing.T) {
	h, tg, _ := newTestHandler(t, stubAnalyzer{}, stubStylist{})
	ctx := context.Background()

	require.NoError(t, h.HandleUpdate(ctx, photo(9, "")))
	require.NoError(t, h.HandleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "q",
		Data:    cb("generate"),
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 9}},
	}}))

	assert.Len(t, tg.photos, 3)
}

func TestAlbumUsesFirstPhoto(t *testing.T) {
	h, tg, store := newTestHandler(t, stubAnalyzer{}, stubStylist{})
	ctx := context.Background()

	for i, caption := range []string{"linen summer", "", ""} {
		u := photo(9, caption)
		u.Message.MediaGroupID = "album-1"
		u.Message.MessageID = i + 1
		require.NoError(t, h.HandleUpdate(ctx, u))
	}

	require.Eventually(t, func() bool {
		st := store.Get(9).Snapshot()
		return st.HasImage && st.Style == "linen summer"
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		tg.mu.Lock()
		defer tg.mu.Unlock()
		for _, text := range tg.texts {
			if text == "ℹ️ Got 3 photos. Using the first one." {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestUploadRejectsNonImageDocument(t *testing.T) {
	h, tg, store := newTestHandler(t, stubAnalyzer{}, stubStylist{})
	tg.file = []byte("hello, definitely not an image")

	u := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 4},
		Document: &tgbotapi.Document{FileID: "doc", MimeType: "image/png"},
	}}
	require.NoError(t, h.HandleUpdate(context.Background(), u))

	assert.False(t, store.Get(4).Snapshot().HasImage)
	assert.Equal(t, []string{"❌ That file does not look like an image."}, tg.texts)
}
