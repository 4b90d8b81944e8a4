package album

import (
	"fmt"
	"sync"
	"time"
)

const DefaultDebounce = 1200 * time.Millisecond

// Photo is one image message that belongs to a Telegram album.
type Photo struct {
	ChatID  int64
	AlbumID string
	FileID  string
	Caption string
}

// Album is every photo received for one album, in arrival order.
type Album struct {
	ChatID  int64
	Caption string
	Photos  []Photo
}

func (a Album) First() Photo {
	return a.Photos[0]
}

type Options struct {
	Debounce time.Duration
	OnFlush  func(Album)
}

// Collector groups album messages and hands each album to OnFlush once no
// new photo has arrived for the debounce window.
type Collector struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(Album)
	pending  map[string]*pendingAlbum
}

type pendingAlbum struct {
	album Album
	timer *time.Timer
}

func New(opts Options) *Collector {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Collector{
		debounce: debounce,
		onFlush:  opts.OnFlush,
		pending:  make(map[string]*pendingAlbum),
	}
}

// Add records a photo. Photos without an album id are ignored.
func (c *Collector) Add(p Photo) {
	if p.AlbumID == "" || p.FileID == "" {
		return
	}

	key := albumKey(p.ChatID, p.AlbumID)

	c.mu.Lock()
	defer c.mu.Unlock()

	pa, ok := c.pending[key]
	if !ok {
		pa = &pendingAlbum{album: Album{ChatID: p.ChatID}}
		c.pending[key] = pa
	}
	pa.album.Photos = append(pa.album.Photos, p)
	if p.Caption != "" && pa.album.Caption == "" {
		pa.album.Caption = p.Caption
	}

	if pa.timer != nil {
		pa.timer.Stop()
	}
	pa.timer = time.AfterFunc(c.debounce, func() {
		c.flush(key)
	})
}

// Pending reports how many albums are still waiting for their window to close.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Collector) flush(key string) {
	c.mu.Lock()
	pa, ok := c.pending[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	album := pa.album
	onFlush := c.onFlush
	c.mu.Unlock()

	if onFlush != nil && len(album.Photos) > 0 {
		onFlush(album)
	}
}

func albumKey(chatID int64, albumID string) string {
	return fmt.Sprintf("%d:%s", chatID, albumID)
}
