package diskmanager

import "errors"

var (
	ErrIO              = errors.New("i/o error")
	ErrInvalidPageID   = errors.New("invalid page id")
	ErrBadPageSize     = errors.New("page buffer size does not match disk page size")
	ErrClosed          = errors.New("disk manager is closed")
	ErrBadMagic        = errors.New("invalid database file magic number")
	ErrHeaderMismatch  = errors.New("database file header does not match configuration")
	ErrSerialization   = errors.New("error during serialization")
	ErrDeserialization = errors.New("error during deserialization")
)
