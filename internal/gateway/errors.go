package gateway

import "fmt"

// Failure is the terminal error returned to the caller. Its message is meant
// to be shown to the end user as is.
type Failure struct {
	Provider string
	Err      error
}

func (f *Failure) Error() string {
	msg := "unknown error"
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return fmt.Sprintf("Failed to get response from %s: %s", f.Provider, msg)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NoResponse is the sentinel reply for a successful call without content.
func NoResponse(provider string) string {
	return "No response from " + provider
}
