package unsea

import (
	"errors"

	"github.com/unsea/unsea/seablob"
)

var (
	// ErrMalformedContainer indicates that the executable's own header or
	// table structure is internally inconsistent
	ErrMalformedContainer = errors.New("malformed container")
	// ErrResourceNotFound indicates a well-formed executable that carries no
	// embedded resource
	ErrResourceNotFound = errors.New("resource not found")
)

// Errors re-exported from seablob, so every failure mode of Extract can be
// matched with a single import.
var (
	ErrInvalidMagic    = seablob.ErrInvalidMagic
	ErrInvalidEncoding = seablob.ErrInvalidEncoding
	ErrTruncatedBlob   = seablob.ErrTruncatedBlob
)
