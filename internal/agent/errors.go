package agent

import "errors"

var (
	// ErrRequirementNotFound means the start-run target does not exist; no run
	// record is created.
	ErrRequirementNotFound = errors.New("requirement not found")

	// ErrRunInProgress is the duplicate-run conflict: the requirement is
	// already IN_AGENT. A conflict, not an error in the pipeline itself.
	ErrRunInProgress = errors.New("agent run already in progress for this requirement")

	// ErrRunNotFound means no run record exists for the given id or requirement.
	ErrRunNotFound = errors.New("agent run not found")
)

// ValidationError marks a client-attributable trip field failure raised by the
// supervisor. It aborts the run at step 1.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// ProviderError marks a terminal external provider failure, e.g. the
// generative provider returning unparsable output across all attempts.
type ProviderError struct {
	Provider string
	Err      error
}

func (e ProviderError) Error() string { return e.Provider + ": " + e.Err.Error() }
func (e ProviderError) Unwrap() error { return e.Err }
