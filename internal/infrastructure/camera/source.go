package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scanstock/backend/internal/domain/scanning"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// ErrStreamClosed is returned by Read after Close
var ErrStreamClosed = errors.New("camera stream closed")

// Source opens endpoints through OpenCV
type Source struct {
	logger         *zap.Logger
	replayInterval time.Duration
}

// Option configures a Source
type Option func(*Source)

// WithReplayInterval paces replayed frames, simulating a camera frame rate
func WithReplayInterval(d time.Duration) Option {
	return func(s *Source) {
		s.replayInterval = d
	}
}

// NewSource creates a frame source
func NewSource(logger *zap.Logger, opts ...Option) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Source{logger: logger.Named("camera")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the endpoint
func (s *Source) Open(ctx context.Context, endpoint string) (scanning.FrameStream, error) {
	target, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug("opening camera",
		zap.String("endpoint", endpoint),
		zap.Stringer("kind", target.Kind),
	)

	switch target.Kind {
	case TargetReplay:
		return openReplay(target.Dir, s.replayInterval)
	case TargetDevice:
		return s.openCapture(ctx, endpoint, target.Device)
	default:
		return s.openCapture(ctx, endpoint, target.URL)
	}
}

type openResult struct {
	vc  *gocv.VideoCapture
	err error
}

// openCapture runs the blocking VideoCapture open off the caller's goroutine so a
// cancelled context returns promptly. A capture that opens after cancellation is closed.
func (s *Source) openCapture(ctx context.Context, endpoint string, device interface{}) (scanning.FrameStream, error) {
	done := make(chan openResult, 1)
	go func() {
		vc, err := gocv.OpenVideoCapture(device)
		if err == nil && !vc.IsOpened() {
			_ = vc.Close()
			vc, err = nil, fmt.Errorf("capture did not open")
		}
		done <- openResult{vc: vc, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("open %s: %w", endpoint, r.err)
		}
		return newCaptureStream(endpoint, r.vc, s.logger), nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.vc != nil {
				_ = r.vc.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// captureStream reads frames from a VideoCapture. mu serialises the capture between the
// read goroutine and Close; a read abandoned by its context keeps the lock until OpenCV returns.
type captureStream struct {
	endpoint string
	logger   *zap.Logger

	mu  sync.Mutex
	vc  *gocv.VideoCapture
	mat gocv.Mat
	seq int

	closed    atomic.Bool
	closeOnce sync.Once
}

func newCaptureStream(endpoint string, vc *gocv.VideoCapture, logger *zap.Logger) *captureStream {
	return &captureStream{
		endpoint: endpoint,
		logger:   logger,
		vc:       vc,
		mat:      gocv.NewMat(),
	}
}

type readResult struct {
	frame scanning.Frame
	err   error
}

// Read returns the next frame or ctx.Err() when the context ends first
func (s *captureStream) Read(ctx context.Context) (scanning.Frame, error) {
	if s.closed.Load() {
		return scanning.Frame{}, ErrStreamClosed
	}

	done := make(chan readResult, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		frame, err := s.readLocked()
		done <- readResult{frame: frame, err: err}
	}()

	select {
	case r := <-done:
		return r.frame, r.err
	case <-ctx.Done():
		return scanning.Frame{}, ctx.Err()
	}
}

func (s *captureStream) readLocked() (scanning.Frame, error) {
	if s.closed.Load() {
		return scanning.Frame{}, ErrStreamClosed
	}
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return scanning.Frame{}, fmt.Errorf("read frame from %s: no data", s.endpoint)
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return scanning.Frame{}, fmt.Errorf("convert frame: %w", err)
	}

	s.seq++
	return scanning.Frame{
		Seq:        s.seq,
		Width:      s.mat.Cols(),
		Height:     s.mat.Rows(),
		Image:      img,
		CapturedAt: time.Now(),
	}, nil
}

// Close releases the capture. It never blocks: when a read is still inside OpenCV
// the release happens as soon as that read returns.
func (s *captureStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.mu.TryLock() {
			s.release()
			s.mu.Unlock()
			return
		}
		go func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.release()
		}()
	})
	return nil
}

func (s *captureStream) release() {
	if err := s.vc.Close(); err != nil {
		s.logger.Warn("failed to close capture", zap.String("endpoint", s.endpoint), zap.Error(err))
	}
	_ = s.mat.Close()
	s.logger.Debug("camera released", zap.String("endpoint", s.endpoint), zap.Int("frames", s.seq))
}

var _ scanning.FrameSource = (*Source)(nil)
