package gateway

import "guildbot/internal/llm"

// Target selects which provider a request is routed to.
type Target int

const (
	TargetPrimary Target = iota
	TargetSecondary
)

func (t Target) String() string {
	if t == TargetSecondary {
		return "secondary"
	}
	return "primary"
}

// RetryPolicy describes the reset-and-retry protocol for a route. The zero
// value never retries.
type RetryPolicy struct {
	// Recoverable reports whether a failed attempt may be recovered.
	Recoverable func(error) bool
	// ResetDirective is sent as the only user message of the throwaway probe.
	ResetDirective string
	// Attempts is the number of probe+retry rounds.
	Attempts int
}

func (p RetryPolicy) allows(err error, attempt int) bool {
	return p.Recoverable != nil && attempt < p.Attempts && p.Recoverable(err)
}

// Route binds a target to its provider, model and retry policy.
type Route struct {
	Target   Target
	Provider llm.Provider
	Model    string
	Policy   RetryPolicy
}

// Name is the provider display name used in user-facing messages.
func (r Route) Name() string {
	return r.Provider.Name()
}

// PrimaryRoute is the gateway route: connection errors trigger one session
// reset followed by one retry.
func PrimaryRoute(p llm.Provider, model, resetDirective string) Route {
	if model == "" {
		model = p.DefaultModel()
	}
	return Route{
		Target:   TargetPrimary,
		Provider: p,
		Model:    model,
		Policy: RetryPolicy{
			Recoverable:    llm.IsConnectionError,
			ResetDirective: resetDirective,
			Attempts:       1,
		},
	}
}

// SecondaryRoute is the direct-provider route. It is never retried.
func SecondaryRoute(p llm.Provider, model string) Route {
	if model == "" {
		model = p.DefaultModel()
	}
	return Route{Target: TargetSecondary, Provider: p, Model: model}
}
