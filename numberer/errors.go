package numberer

import (
	"fmt"
)

// DeserializationError is returned when persisted label tables are
// malformed or do not describe a bijection.
type DeserializationError struct {
	Err error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("cannot read label table: %v", e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// IOError is returned when the sink rejects a write of a label table.
type IOError struct {
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cannot write label table: %v", e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
