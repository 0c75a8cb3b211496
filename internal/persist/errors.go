package persist

import (
	"errors"
	"fmt"
)

// ErrPersistence matches every error returned by Save, ForceSave and Load.
var ErrPersistence = errors.New("persistence failed")

// PersistenceError wraps a storage failure. The document is left exactly as
// it was before the call.
type PersistenceError struct {
	Op        string
	SubjectID int64
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s subject %d: %v", e.Op, e.SubjectID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func wrap(op string, subjectID int64, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, SubjectID: subjectID, Err: err}
}
