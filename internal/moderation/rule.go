// Package moderation implements the content rule applied to chat messages.
package moderation

import (
	"fmt"
	"regexp"
	"strings"
)

// Exemptions reports which senders bypass the rule.
type Exemptions interface {
	IsExempt(userID string) bool
}

// Rule flags messages whose text, with newlines removed, matches a pattern.
type Rule struct {
	pattern *regexp.Regexp
	warning string
	exempt  Exemptions
}

// NewRule compiles pattern. warning is the reply sent before deletion.
func NewRule(pattern, warning string, exempt Exemptions) (*Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile moderation pattern: %w", err)
	}
	return &Rule{pattern: re, warning: warning, exempt: exempt}, nil
}

// Warning is the text replied to a violating message.
func (r *Rule) Warning() string { return r.warning }

// Violates reports whether a message from senderID breaks the rule.
func (r *Rule) Violates(senderID, text string) bool {
	if r.exempt != nil && r.exempt.IsExempt(senderID) {
		return false
	}
	return r.pattern.MatchString(strings.ReplaceAll(text, "\n", ""))
}
