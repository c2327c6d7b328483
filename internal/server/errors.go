package server

import (
	"errors"
	"net/http"

	"dress-to-impress/internal/store"
)

type RejectionKind string

const (
	KindAuthentication RejectionKind = "authentication"
	KindAuthorization  RejectionKind = "authorization"
	KindNotFound       RejectionKind = "not_found"
	KindStore          RejectionKind = "store"
	KindProtocol       RejectionKind = "protocol"
	KindValidation     RejectionKind = "validation"
	KindRateLimited    RejectionKind = "rate_limited"
)

const (
	reasonAuthRequired   = "Authentication required"
	reasonInvalidToken   = "Invalid token"
	reasonGameNotFound   = "Game not found"
	reasonNotParticipant = "Not a participant in this game"
	reasonNotInRoom      = "not in game room"
	reasonUnknownEvent   = "unknown event"
	reasonRateLimited    = "rate limited"
)

// Rejection is a structured refusal returned to the caller of a realtime
// event or REST request. The connection stays open for every kind except
// authentication.
type Rejection struct {
	Kind   RejectionKind
	Reason string
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return r.Reason + ": " + r.Err.Error()
	}
	return r.Reason
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

func reject(kind RejectionKind, reason string) *Rejection {
	return &Rejection{Kind: kind, Reason: reason}
}

func rejectStore(reason string, err error) *Rejection {
	return &Rejection{Kind: KindStore, Reason: reason, Err: err}
}

// StatusCode maps a rejection onto an HTTP status. Store failures keep the
// upstream status when it is an error status.
func (r *Rejection) StatusCode() int {
	switch r.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindProtocol:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindStore:
		return storeStatus(r.Err)
	default:
		return http.StatusInternalServerError
	}
}

// Detail is the message shown to REST callers. Store failures surface the
// upstream message.
func (r *Rejection) Detail() string {
	if r.Kind == KindStore && r.Err != nil {
		return r.Err.Error()
	}
	return r.Reason
}

func storeStatus(err error) int {
	var storeErr *store.Error
	if errors.As(err, &storeErr) && storeErr.StatusCode >= 400 && storeErr.StatusCode < 600 {
		return storeErr.StatusCode
	}
	return http.StatusBadGateway
}

// asRejection converts any handler error into a rejection.
func asRejection(err error, reason string) *Rejection {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej
	}
	if errors.Is(err, store.ErrNotFound) {
		return &Rejection{Kind: KindNotFound, Reason: reason, Err: err}
	}
	return rejectStore(reason, err)
}
