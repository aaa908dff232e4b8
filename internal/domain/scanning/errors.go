package scanning

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an acquisition failed
type ErrorKind int

const (
	KindDeviceUnreachable ErrorKind = iota + 1
	KindStreamInterrupted
	KindDecoderFault
	KindCancelled
	KindEndpointBusy
	KindInvalidEndpoint
)

// Sentinel errors matched with errors.Is against any *AcquisitionError
var (
	ErrDeviceUnreachable = errors.New("device unreachable")
	ErrStreamInterrupted = errors.New("stream interrupted")
	ErrDecoderFault      = errors.New("decoder fault")
	ErrCancelled         = errors.New("acquisition cancelled")
	ErrEndpointBusy      = errors.New("endpoint busy")

	// ErrInvalidEndpoint is returned by a FrameSource for an endpoint it can never open.
	// The acquirer does not retry it.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// String returns the kind name
func (k ErrorKind) String() string {
	switch k {
	case KindDeviceUnreachable:
		return "device_unreachable"
	case KindStreamInterrupted:
		return "stream_interrupted"
	case KindDecoderFault:
		return "decoder_fault"
	case KindCancelled:
		return "cancelled"
	case KindEndpointBusy:
		return "endpoint_busy"
	case KindInvalidEndpoint:
		return "invalid_endpoint"
	default:
		return "unknown"
	}
}

// Code returns the error code used in API responses
func (k ErrorKind) Code() string {
	switch k {
	case KindDeviceUnreachable:
		return "DEVICE_UNREACHABLE"
	case KindStreamInterrupted:
		return "STREAM_INTERRUPTED"
	case KindDecoderFault:
		return "DECODER_FAULT"
	case KindCancelled:
		return "SCAN_CANCELLED"
	case KindEndpointBusy:
		return "ENDPOINT_BUSY"
	case KindInvalidEndpoint:
		return "INVALID_ENDPOINT"
	default:
		return "SCAN_FAILED"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindDeviceUnreachable:
		return ErrDeviceUnreachable
	case KindStreamInterrupted:
		return ErrStreamInterrupted
	case KindDecoderFault:
		return ErrDecoderFault
	case KindCancelled:
		return ErrCancelled
	case KindEndpointBusy:
		return ErrEndpointBusy
	case KindInvalidEndpoint:
		return ErrInvalidEndpoint
	default:
		return nil
	}
}

// AcquisitionError is the typed failure returned by Acquirer.Acquire
type AcquisitionError struct {
	Kind     ErrorKind
	Endpoint string
	// Attempts is the number of connect attempts for KindDeviceUnreachable,
	// consecutive failed reads for KindStreamInterrupted and successful decodes
	// collected so far for KindDecoderFault and KindCancelled.
	Attempts int
	Err      error
}

// Error implements the error interface
func (e *AcquisitionError) Error() string {
	msg := fmt.Sprintf("scanning %s: %s", e.Endpoint, e.Kind)
	if e.Attempts > 0 {
		switch e.Kind {
		case KindDeviceUnreachable:
			msg = fmt.Sprintf("%s after %d connect attempts", msg, e.Attempts)
		case KindStreamInterrupted:
			msg = fmt.Sprintf("%s after %d failed reads", msg, e.Attempts)
		case KindDecoderFault, KindCancelled:
			msg = fmt.Sprintf("%s after %d reads", msg, e.Attempts)
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause
func (e *AcquisitionError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the kind of an acquisition error, or 0 if err is not one
func KindOf(err error) ErrorKind {
	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return acqErr.Kind
	}
	return 0
}

func newAcquisitionError(kind ErrorKind, endpoint string, attempts int, err error) *AcquisitionError {
	return &AcquisitionError{
		Kind:     kind,
		Endpoint: endpoint,
		Attempts: attempts,
		Err:      err,
	}
}
