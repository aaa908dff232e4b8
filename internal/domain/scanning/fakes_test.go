package scanning

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var errReadFailed = errors.New("read failed")

// step scripts one Read call and, when the read succeeds, the decode of that frame
type step struct {
	readErr   error
	block     bool
	payloads  []Payload
	decodeErr error
	panics    bool
}

func texts(values ...string) []step {
	steps := make([]step, 0, len(values))
	for _, v := range values {
		if v == "" {
			steps = append(steps, step{})
			continue
		}
		steps = append(steps, step{payloads: []Payload{{Text: v, Format: "EAN_13"}}})
	}
	return steps
}

func repeat(s step, n int) []step {
	out := make([]step, n)
	for i := range out {
		out[i] = s
	}
	return out
}

type fakeSource struct {
	mu        sync.Mutex
	openFails int
	openErr   error
	steps     []step
	opens     int32
	streams   []*fakeStream
}

func newFakeSource(steps []step) *fakeSource {
	return &fakeSource{steps: steps, openErr: errors.New("connection refused")}
}

func (s *fakeSource) Open(_ context.Context, _ string) (FrameStream, error) {
	n := atomic.AddInt32(&s.opens, 1)
	if int(n) <= s.openFails {
		return nil, s.openErr
	}
	stream := &fakeStream{steps: s.steps}
	s.mu.Lock()
	s.streams = append(s.streams, stream)
	s.mu.Unlock()
	return stream, nil
}

func (s *fakeSource) openCount() int {
	return int(atomic.LoadInt32(&s.opens))
}

func (s *fakeSource) stream() *fakeStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.streams) == 0 {
		return nil
	}
	return s.streams[len(s.streams)-1]
}

type fakeStream struct {
	steps  []step
	reads  int32
	closes int32
}

func (s *fakeStream) Read(ctx context.Context) (Frame, error) {
	n := int(atomic.AddInt32(&s.reads, 1))
	if n > len(s.steps) {
		return Frame{}, errReadFailed
	}
	st := s.steps[n-1]
	if st.block {
		<-ctx.Done()
		return Frame{}, ctx.Err()
	}
	if st.readErr != nil {
		return Frame{}, st.readErr
	}
	return Frame{Seq: n, Width: 640, Height: 480}, nil
}

func (s *fakeStream) Close() error {
	atomic.AddInt32(&s.closes, 1)
	return nil
}

func (s *fakeStream) readCount() int {
	return int(atomic.LoadInt32(&s.reads))
}

func (s *fakeStream) closeCount() int {
	return int(atomic.LoadInt32(&s.closes))
}

// scriptDecoder decodes frames by looking up the step for the frame sequence number
type scriptDecoder struct {
	steps   []step
	calls   int32
	onCall  func(call int)
	decoded int32
}

func (d *scriptDecoder) Decode(_ context.Context, frame Frame) ([]Payload, error) {
	call := int(atomic.AddInt32(&d.calls, 1))
	if d.onCall != nil {
		defer d.onCall(call)
	}
	st := d.steps[frame.Seq-1]
	if st.panics {
		panic("corrupt frame buffer")
	}
	if st.decodeErr != nil {
		return nil, st.decodeErr
	}
	if len(st.payloads) > 0 {
		atomic.AddInt32(&d.decoded, 1)
	}
	return st.payloads, nil
}

func testPolicy(reads int) Policy {
	return Policy{
		RequiredReads:     reads,
		MaxConnectRetries: 2,
		RetryDelay:        0,
		MaxReadFailures:   2,
	}
}
