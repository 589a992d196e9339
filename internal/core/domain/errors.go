package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable marks a backing artifact that is missing or unreadable.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrMalformedRecord marks a single record that failed validation.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrNeighborsUnavailable marks a track with no entry in the neighbor table.
	ErrNeighborsUnavailable = errors.New("neighbors unavailable")
	// ErrTransportFailure marks a fetch that failed below the data layer.
	ErrTransportFailure = errors.New("transport failure")
	// ErrNotFound marks an unknown track id or key.
	ErrNotFound = errors.New("not found")
)

// DataUnavailableError names the artifact that could not be loaded.
type DataUnavailableError struct {
	Resource string
	Reason   string
	Err      error
}

func (e *DataUnavailableError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrDataUnavailable, e.Resource)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// MalformedRecordError describes a record dropped at the load boundary.
// Key names the record when it has no stable row position.
type MalformedRecordError struct {
	Resource string
	Row      int
	Key      string
	Reason   string
}

func (e *MalformedRecordError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s record %q: %s", ErrMalformedRecord, e.Resource, e.Key, e.Reason)
	}
	return fmt.Sprintf("%s: %s row %d: %s", ErrMalformedRecord, e.Resource, e.Row, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// TransportError wraps a failed fetch of an artifact.
type TransportError struct {
	Resource string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrTransportFailure, e.Resource)
	}
	return fmt.Sprintf("%s: %s: %v", ErrTransportFailure, e.Resource, e.Err)
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransportFailure
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
