package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/scanstock/backend/internal/domain/scanning"
	"gocv.io/x/gocv"
)

var replayExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// replayStream cycles through the still images of a directory in name order
type replayStream struct {
	files    []string
	interval time.Duration

	mu     sync.Mutex
	next   int
	seq    int
	closed bool
}

// ListReplayFrames returns the image files of dir in replay order
func ListReplayFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read replay directory: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !replayExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func openReplay(dir string, interval time.Duration) (*replayStream, error) {
	files, err := ListReplayFrames(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("replay directory %s has no images", dir)
	}
	return &replayStream{files: files, interval: interval}, nil
}

// Read loads the next image, waiting interval first when one is configured
func (s *replayStream) Read(ctx context.Context) (scanning.Frame, error) {
	if s.interval > 0 {
		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return scanning.Frame{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return scanning.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return scanning.Frame{}, ErrStreamClosed
	}

	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)

	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return scanning.Frame{}, fmt.Errorf("read replay frame %s: unreadable image", filepath.Base(path))
	}

	img, err := mat.ToImage()
	if err != nil {
		return scanning.Frame{}, fmt.Errorf("convert replay frame: %w", err)
	}

	s.seq++
	return scanning.Frame{
		Seq:        s.seq,
		Width:      mat.Cols(),
		Height:     mat.Rows(),
		Image:      img,
		CapturedAt: time.Now(),
	}, nil
}

// Close stops the replay
func (s *replayStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
