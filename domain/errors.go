package domain

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

var (
	ErrOrderBookNotFound  = errors.New("order book not found")
	ErrMarketNotFound     = errors.New("market not found")
	ErrOrderBookNotSynced = errors.New("order book is not synced")
	ErrResyncInProgress   = errors.New("order book resync already in progress")
)

// SnapshotError is returned when a depth snapshot could not be fetched or decoded.
type SnapshotError struct {
	Endpoint   string
	Params     url.Values
	StatusCode int
	Body       []byte
	Err        error
}

func (e *SnapshotError) Error() string {
	msg := fmt.Sprintf("snapshot request failed: endpoint=%s params=%s", e.Endpoint, e.Params.Encode())
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status=%d", e.StatusCode)
	}
	if len(e.Body) > 0 {
		msg += fmt.Sprintf(" body=%s", e.Body)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SnapshotError) Unwrap() error {
	return e.Err
}

// IsThrottled reports whether the exchange asked the client to back off.
func (e *SnapshotError) IsThrottled() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusTeapot
}

func IsSnapshotError(err error) bool {
	var snapshotErr *SnapshotError
	return errors.As(err, &snapshotErr)
}
