package scanning

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Result is the outcome of a successful acquisition
type Result struct {
	Barcode         string        `json:"barcode"`
	Format          string        `json:"format"`
	Count           int           `json:"count"`
	SuccessfulReads int           `json:"successful_reads"`
	FramesRead      int           `json:"frames_read"`
	ReadFailures    int           `json:"read_failures"`
	ConnectAttempts int           `json:"connect_attempts"`
	Tally           []TallyEntry  `json:"tally"`
	Duration        time.Duration `json:"duration"`
}

// Acquirer samples a frame stream until enough frames decode, then returns
// the payload observed most often.
type Acquirer struct {
	source   FrameSource
	decoder  Decoder
	policy   Policy
	lock     EndpointLock
	observer FrameObserver
	now      func() time.Time
}

// AcquirerOption configures an Acquirer
type AcquirerOption func(*Acquirer)

// WithEndpointLock replaces the in-process endpoint lock
func WithEndpointLock(lock EndpointLock) AcquirerOption {
	return func(a *Acquirer) {
		if lock != nil {
			a.lock = lock
		}
	}
}

// WithFrameObserver installs a per-frame callback, typically a preview publisher
func WithFrameObserver(observer FrameObserver) AcquirerOption {
	return func(a *Acquirer) {
		a.observer = observer
	}
}

// NewAcquirer creates an acquirer. Invalid policies are rejected.
func NewAcquirer(source FrameSource, decoder Decoder, policy Policy, opts ...AcquirerOption) (*Acquirer, error) {
	if source == nil {
		return nil, errors.New("frame source is required")
	}
	if decoder == nil {
		return nil, errors.New("decoder is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid acquisition policy: %w", err)
	}

	a := &Acquirer{
		source:  source,
		decoder: decoder,
		policy:  policy,
		lock:    NewLocalEndpointLock(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Policy returns the acquisition policy
func (a *Acquirer) Policy() Policy {
	return a.policy
}

// Acquire runs one acquisition against endpoint.
// Failures are always *AcquisitionError; the stream is closed exactly once on every path.
func (a *Acquirer) Acquire(ctx context.Context, endpoint string) (*Result, error) {
	start := a.now()

	release, err := a.lock.TryLock(ctx, endpoint)
	if err != nil {
		if errors.Is(err, ErrEndpointBusy) {
			return nil, newAcquisitionError(KindEndpointBusy, endpoint, 0, nil)
		}
		return nil, fmt.Errorf("lock endpoint %s: %w", endpoint, err)
	}
	defer release()

	stream, attempts, err := a.open(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer func() { _ = stream.Close() }()

	tally := NewTally()
	res := &Result{ConnectAttempts: attempts}
	failures := 0

	for tally.Total() < a.policy.RequiredReads {
		if err := ctx.Err(); err != nil {
			return nil, newAcquisitionError(KindCancelled, endpoint, tally.Total(), err)
		}

		frame, err := stream.Read(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, newAcquisitionError(KindCancelled, endpoint, tally.Total(), ctxErr)
			}
			failures++
			res.ReadFailures++
			if failures > a.policy.MaxReadFailures {
				return nil, newAcquisitionError(KindStreamInterrupted, endpoint, failures, err)
			}
			continue
		}
		failures = 0
		res.FramesRead++

		if a.observer != nil {
			a.observer(frame)
		}

		payloads, err := a.decode(ctx, frame)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, newAcquisitionError(KindCancelled, endpoint, tally.Total(), ctxErr)
			}
			return nil, newAcquisitionError(KindDecoderFault, endpoint, tally.Total(), err)
		}
		if len(payloads) == 0 || payloads[0].Text == "" {
			continue
		}
		tally.Add(payloads[0])
	}

	leader, _ := tally.Leader()
	res.Barcode = leader.Text
	res.Format = leader.Format
	res.Count = leader.Count
	res.SuccessfulReads = tally.Total()
	res.Tally = tally.Entries()
	res.Duration = a.now().Sub(start)
	return res, nil
}

// open connects to the endpoint, retrying with a fixed delay
func (a *Acquirer) open(ctx context.Context, endpoint string) (FrameStream, int, error) {
	maxAttempts := a.policy.MaxConnectRetries + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, newAcquisitionError(KindCancelled, endpoint, 0, err)
		}

		stream, err := a.source.Open(ctx, endpoint)
		if err == nil {
			return stream, attempt, nil
		}
		if errors.Is(err, ErrInvalidEndpoint) {
			return nil, attempt, newAcquisitionError(KindInvalidEndpoint, endpoint, 0, err)
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, attempt, newAcquisitionError(KindCancelled, endpoint, 0, ctx.Err())
		case <-time.After(a.policy.RetryDelay):
		}
	}

	return nil, maxAttempts, newAcquisitionError(KindDeviceUnreachable, endpoint, maxAttempts, lastErr)
}

// decode calls the decoder, converting a panic into an error
func (a *Acquirer) decode(ctx context.Context, frame Frame) (payloads []Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoder panic: %v", r)
		}
	}()
	return a.decoder.Decode(ctx, frame)
}
