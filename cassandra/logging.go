package cassandra

import "github.com/go-kit/log"

// Logger is the structured logging seam the Session State Machine and
// Request Dispatch log through (SPEC_FULL.md §4.J), matching the
// key/value convention github.com/go-kit/log uses throughout the rest of
// the ambient stack rather than formatted strings.
type Logger = log.Logger

// NopLogger discards everything; it is the default when DialOptions
// omits a Logger.
func NopLogger() log.Logger {
	return log.NewNopLogger()
}
