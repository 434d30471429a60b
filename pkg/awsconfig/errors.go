package awsconfig

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when the config file does not exist.
var ErrNotFound = errors.New("aws config file not found")

// ParseError is returned when a config file has malformed section syntax.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %s", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IOError is returned when reading or writing a file fails for a reason
// other than the file being absent, e.g. permissions or a full disk.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
