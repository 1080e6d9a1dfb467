package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"guildbot/internal/eventbus"
	"guildbot/internal/llm"
	"guildbot/internal/logging"
)

const defaultMaxTokens = 2048

// ChatRequest is one inbound AI request.
type ChatRequest struct {
	CallerID     string
	Text         string
	Images       []string
	SystemPrompt string
}

// Publisher receives gateway result events.
type Publisher interface {
	Publish(topic eventbus.Topic, payload any)
}

// Options configures a Gateway.
type Options struct {
	PrivilegedID string
	MaxTokens    int
	Events       Publisher
}

// Gateway routes chat requests by caller role and applies each route's
// retry policy. It holds no per-request state and is safe for concurrent use.
type Gateway struct {
	primary      Route
	secondary    Route
	privilegedID string
	maxTokens    int
	events       Publisher
	logger       zerolog.Logger
}

// New creates a gateway over a primary and a secondary route.
func New(primary, secondary Route, opts Options, logger zerolog.Logger) *Gateway {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &Gateway{
		primary:      primary,
		secondary:    secondary,
		privilegedID: opts.PrivilegedID,
		maxTokens:    opts.MaxTokens,
		events:       opts.Events,
		logger:       logging.Component(logger, "gateway"),
	}
}

// Route returns the route a caller would be sent to.
func (g *Gateway) Route(callerID string) (Route, Role) {
	role := ResolveRole(callerID, g.privilegedID)
	if role == RolePrivileged {
		return g.primary, role
	}
	return g.secondary, role
}

// Chat sends the request to the route chosen by the caller's role and
// returns the reply text. An empty reply degrades to NoResponse. Errors are
// always *Failure.
func (g *Gateway) Chat(ctx context.Context, req ChatRequest) (string, error) {
	route, role := g.Route(req.CallerID)
	body := &llm.ChatRequest{
		Model:     route.Model,
		Messages:  ComposeMessages(req.SystemPrompt, role, req.Text, req.Images),
		User:      req.CallerID,
		MaxTokens: g.maxTokens,
	}

	requestID := uuid.NewString()
	log := g.logger.With().
		Str("request_id", requestID).
		Str("provider", route.Name()).
		Str("target", route.Target.String()).
		Str("role", role.String()).
		Logger()

	start := time.Now()
	resp, retried, err := g.dispatch(ctx, route, body, log)

	result := eventbus.GatewayResultPayload{
		RequestID: requestID,
		Provider:  route.Name(),
		Target:    route.Target.String(),
		Role:      role.String(),
		Retried:   retried,
	}

	if err != nil {
		log.Error().Err(err).Bool("retried", retried).Msg("chat failed")
		result.Outcome = "failure"
		result.Duration = time.Since(start)
		g.publish(result)
		return "", &Failure{Provider: route.Name(), Err: err}
	}

	result.Duration = time.Since(start)
	if resp.Content == "" {
		if retried {
			log.Warn().Msg("no content in response after retry")
		} else {
			log.Warn().Msg("no content in response")
		}
		result.Outcome = "empty"
		g.publish(result)
		return NoResponse(route.Name()), nil
	}

	log.Debug().Dur("duration", result.Duration).Bool("retried", retried).Msg("chat succeeded")
	result.Outcome = "success"
	g.publish(result)
	return resp.Content, nil
}

// dispatch calls the route once and, while the policy allows, probes a
// session reset and retries. The last attempt's error wins.
func (g *Gateway) dispatch(ctx context.Context, route Route, body *llm.ChatRequest, log zerolog.Logger) (*llm.Response, bool, error) {
	resp, err := route.Provider.Chat(ctx, body)
	retried := false
	for attempt := 0; err != nil && route.Policy.allows(err, attempt); attempt++ {
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("connection error, resetting session")
		g.probeReset(ctx, route, body)
		retried = true
		resp, err = route.Provider.Chat(ctx, body)
	}
	if err == nil && resp == nil {
		err = errors.New("provider returned no response")
	}
	return resp, retried, err
}

// probeReset sends the reset directive; its outcome is deliberately ignored.
func (g *Gateway) probeReset(ctx context.Context, route Route, body *llm.ChatRequest) {
	probe := &llm.ChatRequest{
		Model:     body.Model,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: route.Policy.ResetDirective}},
		User:      body.User,
		MaxTokens: body.MaxTokens,
	}
	_, _ = route.Provider.Chat(ctx, probe)
}

func (g *Gateway) publish(p eventbus.GatewayResultPayload) {
	if g.events != nil {
		g.events.Publish(eventbus.TopicGatewayResult, p)
	}
}
