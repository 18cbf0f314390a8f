package dupfind

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownStrategy = errors.New("dupfind: unknown strategy")
	ErrUnknownPolicy   = errors.New("dupfind: unknown keep policy")
	ErrInvalidOption   = errors.New("dupfind: invalid option")
	ErrIO              = errors.New("dupfind: read failed")
	ErrDecode          = errors.New("dupfind: not a decodable image")
)

// FileError reports a file that could not be fingerprinted.
// errors.Is matches both Kind (ErrIO or ErrDecode) and the underlying cause.
type FileError struct {
	Path string
	Kind error
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Path, e.Kind, e.Err)
}

func (e *FileError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func ioError(path string, err error) error {
	return &FileError{Path: path, Kind: ErrIO, Err: err}
}

func decodeError(path string, err error) error {
	return &FileError{Path: path, Kind: ErrDecode, Err: err}
}
