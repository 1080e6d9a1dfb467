// Package vision describes images by running an external script.
package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"guildbot/internal/logging"
)

// ErrInvalidURL is returned for anything but an absolute http(s) URL.
var ErrInvalidURL = errors.New("image URL must be http or https")

// Describer turns an image URL into text.
type Describer interface {
	Describe(ctx context.Context, imageURL string) (string, error)
}

// ScriptConfig configures a ScriptDescriber.
type ScriptConfig struct {
	Interpreter    string
	Script         string
	Model          string
	Dir            string
	Timeout        time.Duration
	MaxOutputChars int
}

// ScriptDescriber runs `<interpreter> <script> <url> [--model m]` and returns
// its trimmed stdout.
type ScriptDescriber struct {
	cfg    ScriptConfig
	logger zerolog.Logger
}

// NewScriptDescriber creates a describer. Zero values fall back to a 120s
// timeout and 1800 output characters.
func NewScriptDescriber(cfg ScriptConfig, logger zerolog.Logger) *ScriptDescriber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxOutputChars <= 0 {
		cfg.MaxOutputChars = 1800
	}
	return &ScriptDescriber{cfg: cfg, logger: logging.Component(logger, "vision")}
}

func (d *ScriptDescriber) Describe(ctx context.Context, imageURL string) (string, error) {
	if err := validateURL(imageURL); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	args := []string{}
	if d.cfg.Script != "" {
		args = append(args, d.cfg.Script)
	}
	args = append(args, imageURL)
	if d.cfg.Model != "" {
		args = append(args, "--model", d.cfg.Model)
	}

	cmd := exec.CommandContext(ctx, d.cfg.Interpreter, args...)
	cmd.Dir = d.cfg.Dir
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	log := d.logger.With().Str("url", imageURL).Dur("duration", time.Since(start)).Logger()

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn().Msg("vision script timed out")
			return "", fmt.Errorf("vision script timed out after %s", d.cfg.Timeout)
		}
		// The script reports its own failures on stdout.
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" {
			msg = err.Error()
		}
		log.Error().Err(err).Str("output", msg).Msg("vision script failed")
		return "", fmt.Errorf("vision script: %s", truncate(msg, d.cfg.MaxOutputChars))
	}

	out := strings.TrimSpace(stdout.String())
	log.Debug().Int("bytes", len(out)).Msg("vision script finished")
	return truncate(out, d.cfg.MaxOutputChars), nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// truncate cuts s to at most limit runes.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "\n... (truncated)"
}
