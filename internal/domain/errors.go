package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists indicates a record id that is already stored
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrInvalidRequest indicates invalid request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrMissingIdentifier indicates a source document without a derivable ID
	ErrMissingIdentifier = errors.New("document identifier unavailable")
	// ErrDuplicateIdentifier indicates two source documents in one batch share an ID
	ErrDuplicateIdentifier = errors.New("duplicate document identifier")
	// ErrIndexNotLoaded indicates the query engine has nothing to search
	ErrIndexNotLoaded = errors.New("index not loaded")
	// ErrEmptyCollection indicates a collection without indexable documents
	ErrEmptyCollection = errors.New("collection is empty")
	// ErrDimensionMismatch indicates an embedding of unexpected length
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")
)
