package domain

import "fmt"

// StoreError wraps a backend failure (I/O, constraint, timeout) with the
// operation that hit it. The backend's native diagnostic is preserved via
// Unwrap.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// DataCorruptionError reports a persisted value outside the known enum set.
// It is fatal for the operation that read it: guessing a default risks
// further corruption.
type DataCorruptionError struct {
	Field string
	Value string
}

func (e *DataCorruptionError) Error() string {
	return fmt.Sprintf("corrupt %s value %q in store", e.Field, e.Value)
}
