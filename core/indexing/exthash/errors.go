package exthash

import "errors"

var (
	ErrKeyAlreadyExists = errors.New("exthash: key already exists")
	ErrKeyNotFound      = errors.New("exthash: key not found")
	ErrDirectoryFull    = errors.New("exthash: directory at max depth, bucket cannot split")
	ErrDepthTooLarge    = errors.New("exthash: depth exceeds page capacity")
	ErrEntryTooLarge    = errors.New("exthash: key/value too large for bucket page")
)
