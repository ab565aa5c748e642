package database

import "errors"

// ErrNotReady is returned by the startup hook when the database cannot be
// reached within the connection timeout.
var ErrNotReady = errors.New("database not ready")
