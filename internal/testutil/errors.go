package testutil

// FaultError is what the fakes return when a failure was injected into op.
type FaultError struct {
	Op string
}

func (e *FaultError) Error() string {
	return "injected " + e.Op + " failure"
}

// Fault returns an injected failure for op.
func Fault(op string) *FaultError {
	return &FaultError{Op: op}
}
