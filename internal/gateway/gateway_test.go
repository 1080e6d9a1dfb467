package gateway

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildbot/internal/eventbus"
	"guildbot/internal/llm"
)

type result struct {
	resp *llm.Response
	err  error
}

// fakeProvider replays scripted results and records every request.
type fakeProvider struct {
	mu      sync.Mutex
	name    string
	model   string
	script  []result
	calls   []*llm.ChatRequest
	onProbe error
}

func (f *fakeProvider) Name() string         { return f.name }
func (f *fakeProvider) DefaultModel() string { return f.model }

func (f *fakeProvider) Chat(_ context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if len(req.Messages) == 1 && req.Messages[0].Content == "/new" {
		return nil, f.onProbe
	}
	if len(f.script) == 0 {
		return &llm.Response{Content: "default"}, nil
	}
	r := f.script[0]
	f.script = f.script[1:]
	return r.resp, r.err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recorder struct {
	mu     sync.Mutex
	events []eventbus.GatewayResultPayload
}

func (r *recorder) Publish(topic eventbus.Topic, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := payload.(eventbus.GatewayResultPayload); ok && topic == eventbus.TopicGatewayResult {
		r.events = append(r.events, p)
	}
}

const masterID = "1001"

func newTestGateway(primary, secondary *fakeProvider) (*Gateway, *recorder) {
	rec := &recorder{}
	g := New(
		PrimaryRoute(primary, "", "/new"),
		SecondaryRoute(secondary, ""),
		Options{PrivilegedID: masterID, Events: rec},
		zerolog.Nop(),
	)
	return g, rec
}

func ok(content string) result {
	return result{resp: &llm.Response{Content: content}}
}

func fail(err error) result {
	return result{err: err}
}

func TestScenarioPrivilegedSuccess(t *testing.T) {
	primary := &fakeProvider{name: "OpenClaw", model: "openclaw:main", script: []result{ok("hi master")}}
	secondary := &fakeProvider{name: "Z.ai", model: "glm-4.7"}
	g, rec := newTestGateway(primary, secondary)

	reply, err := g.Chat(context.Background(), ChatRequest{CallerID: masterID, Text: "hello", SystemPrompt: "be brief"})
	require.NoError(t, err)
	assert.Equal(t, "hi master", reply)

	require.Equal(t, 1, primary.callCount())
	assert.Zero(t, secondary.callCount())

	sent := primary.calls[0]
	assert.Equal(t, "openclaw:main", sent.Model)
	assert.Equal(t, masterID, sent.User)
	assert.Equal(t, 2048, sent.MaxTokens)
	require.Len(t, sent.Messages, 2)
	assert.Equal(t, "be brief\n\n[Caller role: MASTER]", sent.Messages[0].Content)

	require.Len(t, rec.events, 1)
	assert.Equal(t, "success", rec.events[0].Outcome)
	assert.Equal(t, "primary", rec.events[0].Target)
	assert.NotEmpty(t, rec.events[0].RequestID)
	assert.False(t, rec.events[0].Retried)
}

func TestScenarioPrivilegedResetAndRetry(t *testing.T) {
	primary := &fakeProvider{
		name:    "OpenClaw",
		model:   "openclaw:main",
		script:  []result{fail(&llm.TransportError{Provider: "OpenClaw", Err: syscall.ECONNRESET}), ok("recovered")},
		onProbe: errors.New("probe exploded"),
	}
	g, rec := newTestGateway(primary, &fakeProvider{name: "Z.ai"})

	reply, err := g.Chat(context.Background(), ChatRequest{CallerID: masterID, Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply)

	require.Equal(t, 3, primary.callCount())
	probe := primary.calls[1]
	require.Len(t, probe.Messages, 1)
	assert.Equal(t, llm.RoleUser, probe.Messages[0].Role)
	assert.Equal(t, "/new", probe.Messages[0].Content)
	assert.Equal(t, masterID, probe.User)
	assert.Same(t, primary.calls[0], primary.calls[2])

	require.Len(t, rec.events, 1)
	assert.True(t, rec.events[0].Retried)
}

func TestRetryFailureCarriesRetryError(t *testing.T) {
	primary := &fakeProvider{
		name:  "OpenClaw",
		model: "openclaw:main",
		script: []result{
			fail(errors.New("read tcp: connection reset by peer")),
			fail(&llm.ProviderError{Provider: "OpenClaw", Message: "session busy"}),
		},
	}
	g, _ := newTestGateway(primary, &fakeProvider{name: "Z.ai"})

	_, err := g.Chat(context.Background(), ChatRequest{CallerID: masterID, Text: "hello"})
	require.Error(t, err)
	assert.Equal(t, "Failed to get response from OpenClaw: session busy", err.Error())
	assert.Equal(t, 3, primary.callCount())
}

func TestRetryIsSingleAttempt(t *testing.T) {
	reset := &llm.TransportError{Provider: "OpenClaw", Err: syscall.ECONNRESET}
	primary := &fakeProvider{name: "OpenClaw", script: []result{fail(reset), fail(reset), ok("too late")}}
	g, _ := newTestGateway(primary, &fakeProvider{name: "Z.ai"})

	_, err := g.Chat(context.Background(), ChatRequest{CallerID: masterID, Text: "hello"})
	require.Error(t, err)

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "OpenClaw", failure.Provider)
	assert.True(t, errors.Is(err, syscall.ECONNRESET))
	assert.Equal(t, 3, primary.callCount())
}

func TestScenarioStandardProviderError(t *testing.T) {
	primary := &fakeProvider{name: "OpenClaw"}
	secondary := &fakeProvider{
		name:   "Z.ai",
		model:  "glm-4.7",
		script: []result{fail(&llm.ProviderError{Provider: "Z.ai", StatusCode: 200, Message: "rate limited"})},
	}
	g, rec := newTestGateway(primary, secondary)

	_, err := g.Chat(context.Background(), ChatRequest{CallerID: "2002", Text: "hello", SystemPrompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Z.ai")
	assert.Contains(t, err.Error(), "rate limited")

	assert.Equal(t, 1, secondary.callCount())
	assert.Zero(t, primary.callCount())
	assert.Equal(t, "glm-4.7", secondary.calls[0].Model)
	assert.Equal(t, "p\n\n[Caller role: GUEST]", secondary.calls[0].Messages[0].Content)

	require.Len(t, rec.events, 1)
	assert.Equal(t, "failure", rec.events[0].Outcome)
	assert.Equal(t, "standard", rec.events[0].Role)
	assert.Equal(t, "secondary", rec.events[0].Target)
}

func TestStandardConnectionErrorIsNotRetried(t *testing.T) {
	secondary := &fakeProvider{
		name:   "Z.ai",
		script: []result{fail(&llm.TransportError{Provider: "Z.ai", Err: syscall.ECONNREFUSED})},
	}
	primary := &fakeProvider{name: "OpenClaw"}
	g, _ := newTestGateway(primary, secondary)

	_, err := g.Chat(context.Background(), ChatRequest{CallerID: "2002", Text: "hello"})
	require.Error(t, err)
	assert.Equal(t, 1, secondary.callCount())
	assert.Zero(t, primary.callCount())
}

func TestScenarioPrivilegedNonConnectionError(t *testing.T) {
	primary := &fakeProvider{
		name:   "OpenClaw",
		script: []result{fail(errors.New("invalid character '<' looking for beginning of value"))},
	}
	g, _ := newTestGateway(primary, &fakeProvider{name: "Z.ai"})

	_, err := g.Chat(context.Background(), ChatRequest{CallerID: masterID, Text: "hello"})
	require.Error(t, err)
	assert.Equal(t, "Failed to get response from OpenClaw: invalid character '<' looking for beginning of value", err.Error())
	assert.Equal(t, 1, primary.callCount())
}

func TestEmptyContentReturnsSentinel(t *testing.T) {
	primary := &fakeProvider{name: "OpenClaw", script: []result{ok("")}}
	secondary := &fakeProvider{name: "Z.ai", script: []result{ok("")}}
	g, rec := newTestGateway(primary, secondary)

	reply, err := g.Chat(context.Background(), ChatRequest{CallerID: masterID, Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "No response from OpenClaw", reply)

	reply, err = g.Chat(context.Background(), ChatRequest{CallerID: "2002", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "No response from Z.ai", reply)

	require.Len(t, rec.events, 2)
	assert.Equal(t, "empty", rec.events[0].Outcome)
}

func TestEmptyContentAfterRetryReturnsSentinel(t *testing.T) {
	primary := &fakeProvider{
		name:   "OpenClaw",
		script: []result{fail(errors.New("dial tcp: i/o timeout")), ok("")},
	}
	g, _ := newTestGateway(primary, &fakeProvider{name: "Z.ai"})

	reply, err := g.Chat(context.Background(), ChatRequest{CallerID: masterID, Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "No response from OpenClaw", reply)
	assert.Equal(t, 3, primary.callCount())
}

func TestImagesAreForwarded(t *testing.T) {
	primary := &fakeProvider{name: "OpenClaw"}
	g, _ := newTestGateway(primary, &fakeProvider{name: "Z.ai"})

	_, err := g.Chat(context.Background(), ChatRequest{
		CallerID: masterID,
		Text:     "what is this",
		Images:   []string{"https://a/1.png", "https://a/2.png"},
	})
	require.NoError(t, err)

	user := primary.calls[0].Messages[0]
	require.True(t, user.IsMultipart())
	require.Len(t, user.Parts, 3)
	assert.Equal(t, "https://a/2.png", user.Parts[2].ImageURL)
}

func TestEmptyPrivilegedIDPromotesNobody(t *testing.T) {
	primary := &fakeProvider{name: "OpenClaw"}
	secondary := &fakeProvider{name: "Z.ai"}
	g := New(PrimaryRoute(primary, "", "/new"), SecondaryRoute(secondary, ""), Options{}, zerolog.Nop())

	_, err := g.Chat(context.Background(), ChatRequest{CallerID: "", Text: "hello"})
	require.NoError(t, err)
	assert.Zero(t, primary.callCount())
	assert.Equal(t, 1, secondary.callCount())
}

func TestFailureMessage(t *testing.T) {
	f := &Failure{Provider: "OpenClaw", Err: errors.New("boom")}
	assert.Equal(t, "Failed to get response from OpenClaw: boom", f.Error())
	assert.Equal(t, "Failed to get response from Z.ai: unknown error", (&Failure{Provider: "Z.ai"}).Error())
}
