// Package preview fans encoded camera frames out to live viewers.
// Each subscriber holds only the latest frame: a slow viewer skips frames
// instead of slowing the acquisition loop.
package preview

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/scanstock/backend/internal/domain/scanning"
	"go.uber.org/zap"
)

// ErrHubClosed is returned by Subscribe after Close
var ErrHubClosed = errors.New("preview hub closed")

// Image is one encoded preview frame
type Image struct {
	Endpoint string
	Seq      int
	Width    int
	Height   int
	JPEG     []byte
	At       time.Time
}

// Encoder turns a raw frame image into preview bytes
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
}

// Subscriber receives preview frames for one endpoint, or all endpoints when Endpoint is empty
type Subscriber struct {
	ID       string
	Endpoint string
	frames   chan Image
	dropped  atomic.Uint64
}

// Frames returns the channel of latest frames. It is closed on Unsubscribe or hub Close.
func (s *Subscriber) Frames() <-chan Image {
	return s.frames
}

// Dropped returns how many frames were replaced before the subscriber read them
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// offer replaces any unread frame with img
func (s *Subscriber) offer(img Image) {
	for {
		select {
		case s.frames <- img:
			return
		default:
		}
		select {
		case <-s.frames:
			s.dropped.Add(1)
		default:
		}
	}
}

// Stats summarises hub activity
type Stats struct {
	Subscribers  int    `json:"subscribers"`
	Published    uint64 `json:"published"`
	EncodeErrors uint64 `json:"encode_errors"`
}

// Hub distributes preview frames to subscribers
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool

	encoder Encoder
	logger  *zap.Logger

	published    atomic.Uint64
	encodeErrors atomic.Uint64
}

// NewHub creates a hub that encodes frames with encoder
func NewHub(encoder Encoder, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		encoder:     encoder,
		logger:      logger.Named("preview"),
	}
}

// Subscribe registers a viewer for endpoint ("" for every endpoint)
func (h *Hub) Subscribe(endpoint string) (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	sub := &Subscriber{
		ID:       uuid.NewString(),
		Endpoint: scanning.NormalizeEndpoint(endpoint),
		frames:   make(chan Image, 1),
	}
	h.subscribers[sub.ID] = sub
	h.logger.Debug("preview subscriber added",
		zap.String("subscriber_id", sub.ID),
		zap.String("endpoint", sub.Endpoint),
		zap.Int("subscribers", len(h.subscribers)),
	)
	return sub, nil
}

// Unsubscribe removes the subscriber and closes its channel
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub.ID]; !ok {
		return
	}
	delete(h.subscribers, sub.ID)
	close(sub.frames)
}

// HasSubscribers reports whether any viewer wants frames from endpoint
func (h *Hub) HasSubscribers(endpoint string) bool {
	key := scanning.NormalizeEndpoint(endpoint)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		if sub.Endpoint == "" || sub.Endpoint == key {
			return true
		}
	}
	return false
}

// Publish delivers img to matching subscribers without blocking
func (h *Hub) Publish(img Image) {
	key := scanning.NormalizeEndpoint(img.Endpoint)

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	h.published.Add(1)
	for _, sub := range h.subscribers {
		if sub.Endpoint == "" || sub.Endpoint == key {
			sub.offer(img)
		}
	}
}

// Observer returns the acquisition side channel for endpoint. Frames are encoded
// only while someone is watching.
func (h *Hub) Observer(endpoint string) scanning.FrameObserver {
	return func(frame scanning.Frame) {
		if h.encoder == nil || !h.HasSubscribers(endpoint) {
			return
		}

		data, err := h.encoder.Encode(frame.Image)
		if err != nil {
			if h.encodeErrors.Add(1) == 1 {
				h.logger.Warn("failed to encode preview frame", zap.Error(err))
			}
			return
		}

		h.Publish(Image{
			Endpoint: endpoint,
			Seq:      frame.Seq,
			Width:    frame.Width,
			Height:   frame.Height,
			JPEG:     data,
			At:       frame.CapturedAt,
		})
	}
}

// Stats returns hub counters
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	n := len(h.subscribers)
	h.mu.RUnlock()
	return Stats{
		Subscribers:  n,
		Published:    h.published.Load(),
		EncodeErrors: h.encodeErrors.Load(),
	}
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subscribers {
		close(sub.frames)
		delete(h.subscribers, id)
	}
}
