// Package testutil provides shared helpers for tests.
package testutil

import (
	"context"
	"time"

	"sigil/pkg/requestcontext"
)

// ContextAt returns a context whose request time is pinned to the given
// instant. Tests drive the expiry and scan-window machinery through fixed
// times instead of sleeping.
func ContextAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}
