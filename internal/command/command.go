// Package command dispatches chat commands matched by regular expressions.
package command

import (
	"context"
	"fmt"
	"regexp"
	"sync"
)

// Request is the context a command runs with.
type Request struct {
	ChannelName string
	ChatID      string
	MessageID   string
	SenderID    string
	// Mention is the sender rendered as a mention for the channel.
	Mention string
	Text    string
	// Args holds the pattern's submatches (Args[0] is the full match).
	Args   []string
	Images []string
}

// Result is what a command wants sent back.
type Result struct {
	Reply string
}

// Handler executes a command.
type Handler func(ctx context.Context, req Request) (*Result, error)

// Command binds a name and pattern to a handler.
type Command struct {
	Name    string
	Pattern *regexp.Regexp
	Handler Handler
	// Ack marks slow commands; the bot acknowledges them before running.
	Ack bool
}

// Option customizes a registered command.
type Option func(*Command)

// Acknowledge marks the command for an acknowledgement reaction.
func Acknowledge() Option {
	return func(c *Command) { c.Ack = true }
}

// Registry holds commands in registration order; the first match wins.
type Registry struct {
	mu       sync.RWMutex
	commands []Command
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a command. Registering a name twice replaces the earlier
// command in place.
func (r *Registry) Register(name, pattern string, h Handler, opts ...Option) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("command %s: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cmd := Command{Name: name, Pattern: re, Handler: h}
	for _, opt := range opts {
		opt(&cmd)
	}
	for i, c := range r.commands {
		if c.Name == name {
			r.commands[i] = cmd
			return nil
		}
	}
	r.commands = append(r.commands, cmd)
	return nil
}

// Match returns the first command whose pattern matches text, and the
// submatches.
func (r *Registry) Match(text string) (Command, []string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.commands {
		if m := c.Pattern.FindStringSubmatch(text); m != nil {
			return c, m, true
		}
	}
	return Command{}, nil, false
}

// Names returns command names in dispatch order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for _, c := range r.commands {
		names = append(names, c.Name)
	}
	return names
}
