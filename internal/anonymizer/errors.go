package anonymizer

import "errors"

var (
	// ErrDetectorUnavailable indicates missing credentials or configuration
	// for a detector backend
	ErrDetectorUnavailable = errors.New("detector unavailable")

	// ErrDetectorTransport indicates a network failure, timeout or non-2xx
	// response from a detector backend
	ErrDetectorTransport = errors.New("detector transport failure")

	// ErrDetectorParse indicates a backend returned malformed JSON or an
	// unexpected schema
	ErrDetectorParse = errors.New("detector response parse failure")

	// ErrConfiguration indicates an invalid method or confidence threshold
	ErrConfiguration = errors.New("invalid configuration")
)
