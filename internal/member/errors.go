package member

import "errors"

var (
	// ErrNotFound is returned when no record exists for the identity.
	ErrNotFound = errors.New("member: not found")
	// ErrUnknownField is returned for field keys outside the editable set.
	ErrUnknownField = errors.New("member: unknown field")
	// ErrInvalidValue is returned when a typed field rejects the supplied value.
	ErrInvalidValue = errors.New("member: invalid value")
)

// StorageError wraps any persistence failure. Callers must not assume a partial
// write succeeded.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "member storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// Code is picked up by the router's handler summary logs.
func (e *StorageError) Code() string { return "storage_error" }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
