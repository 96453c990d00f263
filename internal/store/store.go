// Package store loads session documents from their backing store:
// a MongoDB-compatible collection in production, or a local JSONL
// fixture file for development.
package store

import "errors"

// ConnError reports that the session store is unreachable or the
// configured credential is invalid. It is surfaced to the user as an
// error panel with remediation text and is not retried automatically;
// the next render attempts a fresh load.
type ConnError struct {
	Err error
}

func (e *ConnError) Error() string {
	return "connecting to session store: " + e.Err.Error()
}

func (e *ConnError) Unwrap() error {
	return e.Err
}

// Remediation returns operator guidance when err is a ConnError, or
// an empty string otherwise.
func Remediation(err error) string {
	var ce *ConnError
	if !errors.As(err, &ce) {
		return ""
	}
	return "Ensure the connection string is set under [cosmos_db] in the " +
		"secrets file (see the -secrets flag) or exported as " +
		"COSMOS_CONNECTION_STRING, and that the database is reachable " +
		"from this host."
}
