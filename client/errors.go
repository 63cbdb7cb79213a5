package client

import (
	"fmt"

	"github.com/seamrpc/seam/core/validation"
)

// FetchError reports a failed or malformed schema snapshot fetch at client
// construction.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("client: schema fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UnknownProcedureError reports a call to a name absent from the cached
// snapshot.
type UnknownProcedureError struct {
	Name string
}

func (e *UnknownProcedureError) Error() string {
	return fmt.Sprintf("client: unknown procedure %q", e.Name)
}

// InputError reports arguments rejected by the procedure's input schema
// before any transport call was made.
type InputError struct {
	Procedure string
	Err       *validation.Error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("client: %s: invalid input: %v", e.Procedure, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// OutputError reports a transport response rejected by the procedure's
// output schema.
type OutputError struct {
	Procedure string
	Err       *validation.Error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("client: %s: invalid output: %v", e.Procedure, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }
