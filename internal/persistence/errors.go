package persistence

import "errors"

// ErrNotFound is returned by Store.LoadSnapshot when no snapshot has ever
// been saved under that namespace.
var ErrNotFound = errors.New("persistence: snapshot not found")
