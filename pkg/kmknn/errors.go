package kmknn

import "errors"

// ErrConfiguration wraps a bad construction option (non-positive power,
// a cluster count that would exceed platform bounds).
var ErrConfiguration = errors.New("kmknn: configuration error")

// ErrCollaborator wraps a failure propagated verbatim from k-means or the
// metric.
var ErrCollaborator = errors.New("kmknn: collaborator failure")

// ErrPersistence wraps an I/O failure during Save/Load.
var ErrPersistence = errors.New("kmknn: persistence failure")

// ErrTagMismatch is returned by Load when the ALGORITHM blob does not
// carry the expected tag; dispatch through the registry is expected to
// try a different loader rather than treat this as fatal.
var ErrTagMismatch = errors.New("kmknn: algorithm tag mismatch")
