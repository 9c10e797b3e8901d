package types

// Verdict is the decision of the skip gate for one test method
type Verdict struct {
	Skip    bool
	Message string
}

// Proceed lets the original test body run unmodified
func Proceed() Verdict {
	return Verdict{}
}

// Skip replaces the test body with an assumption-style skip carrying message
func Skip(message string) Verdict {
	return Verdict{Skip: true, Message: message}
}

// Label returns the verdict name used for logging and metrics
func (v Verdict) Label() string {
	if v.Skip {
		return "skip"
	}
	return "proceed"
}
