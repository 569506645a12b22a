package journal

import "errors"

var (
	// ErrNotFound the key (or indexed attribute value) is not visible anywhere in the checkpoint chain
	ErrNotFound = errors.New("not found")
	// ErrSealedStore mutation attempted on a sealed checkpoint. Always a bug in the caller
	ErrSealedStore = errors.New("store is sealed")
	// ErrNotSealed flatten attempted on a checkpoint which is still mutable
	ErrNotSealed = errors.New("store is not sealed")
	// ErrMalformedIndex index name does not parse as "<object-type>:<attribute>"
	ErrMalformedIndex = errors.New("malformed index name")
	// ErrUniqueConstraint an indexed attribute value is already claimed by another object
	ErrUniqueConstraint = errors.New("unique constraint violation")
	// ErrTypeMismatch object type differs from the expected one
	ErrTypeMismatch = errors.New("object type mismatch")
)
