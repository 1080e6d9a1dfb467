package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"
)

// ConsoleChannel is a debug channel that reads lines from an input and
// writes replies to an output. Every line is sent as SenderID.
type ConsoleChannel struct {
	mu       sync.Mutex
	in       io.Reader
	out      io.Writer
	senderID string
	nextID   int
	handler  func(InboundMessage)
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewConsoleChannel creates a console channel. senderID is the identity
// attributed to typed lines; pass the privileged id to test as the owner.
func NewConsoleChannel(in io.Reader, out io.Writer, senderID string) *ConsoleChannel {
	if senderID == "" {
		senderID = "local"
	}
	return &ConsoleChannel{in: in, out: out, senderID: senderID}
}

func (c *ConsoleChannel) Name() string { return "console" }

func (c *ConsoleChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.done = make(chan struct{})

	go c.readLoop(ctx)
	return nil
}

func (c *ConsoleChannel) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.running = false
	return nil
}

// Done is closed when the input is exhausted or the channel is stopped.
func (c *ConsoleChannel) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *ConsoleChannel) Send(_ context.Context, msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s] %s\n", msg.ChatID, msg.Text)
	return err
}

func (c *ConsoleChannel) Delete(_ context.Context, chatID, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s] (deleted #%s)\n", chatID, messageID)
	return err
}

func (c *ConsoleChannel) React(_ context.Context, chatID, messageID, emoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s] (reacted %s to #%s)\n", chatID, emoji, messageID)
	return err
}

func (c *ConsoleChannel) Mention(userID string) string {
	return "@" + userID
}

func (c *ConsoleChannel) OnMessage(handler func(InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

func (c *ConsoleChannel) OnReaction(func(ReactionEvent)) {}

func (c *ConsoleChannel) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *ConsoleChannel) readLoop(ctx context.Context) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	defer close(done)

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		text := scanner.Text()
		if text == "" {
			continue
		}

		c.mu.Lock()
		handler := c.handler
		c.nextID++
		id := strconv.Itoa(c.nextID)
		c.mu.Unlock()

		if handler != nil {
			handler(InboundMessage{
				ChannelName: "console",
				MessageID:   id,
				SenderID:    c.senderID,
				SenderName:  "console",
				ChatID:      "console",
				Text:        text,
				Timestamp:   time.Now(),
			})
		}
	}
}
