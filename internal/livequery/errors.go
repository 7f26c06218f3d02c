package livequery

import (
	"errors"
	"fmt"
)

// ErrHubClosed is returned by Subscribe after Close.
var ErrHubClosed = errors.New("livequery: hub closed")

// SubscriptionFault is delivered to onError when a query fails. The
// subscription is inert afterwards; subscribe again to resume.
type SubscriptionFault struct {
	Query string
	Err   error
}

func (e *SubscriptionFault) Error() string {
	return fmt.Sprintf("live query %s failed: %v", e.Query, e.Err)
}

// Unwrap returns the query error.
func (e *SubscriptionFault) Unwrap() error {
	return e.Err
}
