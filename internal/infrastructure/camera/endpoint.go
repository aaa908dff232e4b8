// Package camera implements scanning.FrameSource on top of OpenCV (gocv):
// network cameras and local devices through VideoCapture, and image
// directories replayed as a stream.
package camera

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/scanstock/backend/internal/domain/scanning"
)

// TargetKind identifies how an endpoint is opened
type TargetKind int

const (
	TargetNetwork TargetKind = iota + 1
	TargetDevice
	TargetReplay
)

// String returns the kind name used in logs
func (k TargetKind) String() string {
	switch k {
	case TargetNetwork:
		return "network"
	case TargetDevice:
		return "device"
	case TargetReplay:
		return "replay"
	default:
		return "unknown"
	}
}

// Target is a parsed endpoint
type Target struct {
	Kind   TargetKind
	URL    string // network stream URL
	Device int    // local device index
	Dir    string // replay directory
}

var networkSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"rtsp":  true,
	"rtmp":  true,
	"udp":   true,
	"tcp":   true,
}

// ParseEndpoint classifies an endpoint string.
//
//	http://192.168.43.1:8080/video   network stream (also https, rtsp, rtmp, udp, tcp)
//	0, device:1                      local capture device index
//	file:///srv/frames, replay:dir   directory of still images replayed in name order
func ParseEndpoint(endpoint string) (Target, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Target{}, invalidEndpoint("camera endpoint is empty")
	}

	if n, err := strconv.Atoi(endpoint); err == nil {
		return deviceTarget(n)
	}
	if rest, ok := strings.CutPrefix(endpoint, "device:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return Target{}, invalidEndpoint("invalid device index %q", rest)
		}
		return deviceTarget(n)
	}
	if rest, ok := strings.CutPrefix(endpoint, "replay:"); ok {
		if rest == "" {
			return Target{}, invalidEndpoint("replay endpoint has no directory")
		}
		return Target{Kind: TargetReplay, Dir: rest}, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return Target{}, invalidEndpoint("cannot parse %q: %v", endpoint, err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch {
	case scheme == "file":
		if u.Path == "" {
			return Target{}, invalidEndpoint("file endpoint has no path")
		}
		return Target{Kind: TargetReplay, Dir: u.Path}, nil
	case networkSchemes[scheme]:
		if u.Host == "" {
			return Target{}, invalidEndpoint("%q has no host", endpoint)
		}
		return Target{Kind: TargetNetwork, URL: endpoint}, nil
	default:
		return Target{}, invalidEndpoint("unsupported scheme in %q", endpoint)
	}
}

func deviceTarget(n int) (Target, error) {
	if n < 0 {
		return Target{}, invalidEndpoint("device index cannot be negative")
	}
	return Target{Kind: TargetDevice, Device: n}, nil
}

func invalidEndpoint(format string, args ...any) error {
	return fmt.Errorf("%w: %s", scanning.ErrInvalidEndpoint, fmt.Sprintf(format, args...))
}
