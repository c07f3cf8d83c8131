package pipeline

import "errors"

// callError signals an opaque failure from the underlying model call so the
// presentation layer can report it without inspecting backend details.
type callError struct {
	msg string
	err error
}

func (e callError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e callError) Unwrap() error { return e.err }

// ErrPipeline wraps err as an opaque pipeline failure.
func ErrPipeline(msg string, err error) error { return callError{msg: msg, err: err} }

// IsPipelineError reports whether err originated from a pipeline call.
func IsPipelineError(err error) bool {
	var ce callError
	return errors.As(err, &ce)
}
