package ledger

import "fmt"

// GenericError is the catch-all for assertion-style failures raised by callers
// of the simulator, e.g. scripted test scenarios
type GenericError struct {
	Msg string
}

func Genericf(format string, a ...any) *GenericError {
	return &GenericError{Msg: fmt.Sprintf(format, a...)}
}

func (e *GenericError) Error() string {
	return e.Msg
}
