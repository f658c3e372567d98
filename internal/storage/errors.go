package storage

import "errors"

// ErrSchemaTooNew is returned by Open when the on-disk schema's user_version
// exceeds the version this build knows how to migrate to (spec §4.3 step 3).
var ErrSchemaTooNew = errors.New("storage: schema version is newer than this build supports")

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("storage: not found")
