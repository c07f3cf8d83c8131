package adapter

import "errors"

// invalidInputError signals missing or blank user input, rejected before the
// pipeline is ever touched.
type invalidInputError struct{ msg string }

func (e invalidInputError) Error() string { return e.msg }

// ErrInvalidInput constructs an invalid-input error.
func ErrInvalidInput(msg string) error { return invalidInputError{msg: msg} }

// IsInvalidInput reports whether err rejects the user's input.
func IsInvalidInput(err error) bool {
	var ie invalidInputError
	return errors.As(err, &ie)
}

// fileNotFoundError signals an image path that does not reference an existing
// file.
type fileNotFoundError struct{ path string }

func (e fileNotFoundError) Error() string { return "file not found: " + e.path }

// ErrFileNotFound constructs a file-not-found error for path.
func ErrFileNotFound(path string) error { return fileNotFoundError{path: path} }

// IsFileNotFound reports whether err indicates a missing input file.
func IsFileNotFound(err error) bool {
	var fe fileNotFoundError
	return errors.As(err, &fe)
}
