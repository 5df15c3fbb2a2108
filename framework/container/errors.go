package container

import (
	"errors"
	"fmt"
)

// Causes wrapped by *ContainerError. Match them with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidDefinition  = errors.New("invalid definition")
	ErrUnresolvable       = errors.New("unresolvable parameter")
	ErrFrozen             = errors.New("identifier is frozen as a singleton")
	ErrInvalidTarget      = errors.New("invalid invoke target")
	ErrUnknownMethod      = errors.New("unknown method")
	ErrNotCallable        = errors.New("not a callable")
	ErrCircularDependency = errors.New("circular dependency")
	ErrTypeMismatch       = errors.New("type mismatch")
)

// NotFoundError is returned by Fetch when an identifier has no definition,
// no singleton and no registered constructor.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Couldn't create '%s'", e.ID)
}

// Is makes errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound reports whether err is the not-found condition of the
// identifier that was requested. A missing dependency discovered while
// building some other identifier is reported as a *ContainerError instead,
// so it does not count here even though errors.Is(err, ErrNotFound) holds.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError) //nolint:errorlint // top-level only
	return ok
}

// ContainerError is a configuration or build failure for ID.
type ContainerError struct {
	ID  string
	Op  string
	Msg string
	Err error
}

func (e *ContainerError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("container: %s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("container: %s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *ContainerError) Unwrap() error {
	return e.Err
}

func containerErr(id, op string, err error, format string, args ...any) *ContainerError {
	return &ContainerError{ID: id, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// isContainerError reports whether err is itself a *ContainerError, in which
// case callers return it unchanged so the innermost failure keeps its message.
func isContainerError(err error) bool {
	_, ok := err.(*ContainerError) //nolint:errorlint // top-level only
	return ok
}
