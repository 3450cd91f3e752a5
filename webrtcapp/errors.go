package webrtcapp

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the error taxonomy of the orchestration core.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrNullArg
	ErrInvalidArg
	ErrInvalidState
	ErrAlreadyInitialized
	ErrNotFound
	ErrNotImplemented
	ErrNotEnoughMemory
	ErrBufferTooSmall
	ErrInternal
	ErrTimeout
	ErrCancelled

	// Signaling category.
	ErrIceRefreshFailed
	ErrReconnectFailed
	ErrConnectionLost
	ErrAuthFailed
	ErrSignalingOther

	// Engine category.
	ErrEngineCreate
	ErrEngineSend
	ErrEngineState

	// Dispatcher-specific: capacity reached at OFFER time. Never fails the
	// transport; surfaced to the caller of Dispatch only.
	ErrCapacityExceeded

	// Duplicate OFFER for a peer that already has a session.
	ErrDuplicateOffer
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNullArg:
		return "null_arg"
	case ErrInvalidArg:
		return "invalid_arg"
	case ErrInvalidState:
		return "invalid_state"
	case ErrAlreadyInitialized:
		return "already_initialized"
	case ErrNotFound:
		return "not_found"
	case ErrNotImplemented:
		return "not_implemented"
	case ErrNotEnoughMemory:
		return "not_enough_memory"
	case ErrBufferTooSmall:
		return "buffer_too_small"
	case ErrInternal:
		return "internal"
	case ErrTimeout:
		return "timeout"
	case ErrCancelled:
		return "cancelled"
	case ErrIceRefreshFailed:
		return "ice_refresh_failed"
	case ErrReconnectFailed:
		return "reconnect_failed"
	case ErrConnectionLost:
		return "connection_lost"
	case ErrAuthFailed:
		return "auth_failed"
	case ErrSignalingOther:
		return "signaling_other"
	case ErrEngineCreate:
		return "engine_create"
	case ErrEngineSend:
		return "engine_send"
	case ErrEngineState:
		return "engine_state"
	case ErrCapacityExceeded:
		return "capacity_exceeded"
	case ErrDuplicateOffer:
		return "duplicate_offer"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned across the public API.
type Error struct {
	Kind    ErrorKind
	Op      string
	PeerID  string
	Wrapped error
}

func (e *Error) Error() string {
	if e.PeerID != "" {
		if e.Wrapped != nil {
			return fmt.Sprintf("%s: %s (peer=%s): %v", e.Op, e.Kind, e.PeerID, e.Wrapped)
		}
		return fmt.Sprintf("%s: %s (peer=%s)", e.Op, e.Kind, e.PeerID)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Wrapped }

func newErr(op string, kind ErrorKind) *Error {
	return &Error{Op: op, Kind: kind}
}

func newErrPeer(op string, kind ErrorKind, peerID string) *Error {
	return &Error{Op: op, Kind: kind, PeerID: peerID}
}

func wrapErr(op string, kind ErrorKind, peerID string, err error) *Error {
	return &Error{Op: op, Kind: kind, PeerID: peerID, Wrapped: err}
}

// Is supports errors.Is matching purely on Kind, the sentinel-matching idiom
// used throughout the pack in place of a structured error library.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the ErrorKind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return ErrUnknown, false
}
