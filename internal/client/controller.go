package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/qmuntal/stateless"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	ErrBusy       = errors.New("a reply is still streaming")
	ErrEmptyInput = errors.New("message is empty")
)

const (
	StateIdle      = "idle"
	StateStreaming = "streaming"

	triggerSubmit = "submit"
	triggerFinish = "finish"
)

// Renderer redraws the transcript. It receives a copy.
type Renderer interface {
	Render(messages []Message)
}

// Notifier surfaces errors to the user.
type Notifier interface {
	Notify(err error)
}

// Controller drives one conversation about one content.
type Controller struct {
	client    *Client
	contentID string
	renderer  Renderer
	notifier  Notifier

	mu        sync.Mutex
	fsm       *stateless.StateMachine
	messages  []Message
	sessionID string
	started   bool
	localSeq  int
}

// NewController starts idle with preloaded messages (oldest first) and, if
// known, the conversation's session id.
func NewController(c *Client, contentID string, preload []Message, sessionID string, r Renderer, n Notifier) *Controller {
	fsm := stateless.NewStateMachine(StateIdle)
	fsm.Configure(StateIdle).Permit(triggerSubmit, StateStreaming)
	fsm.Configure(StateStreaming).Permit(triggerFinish, StateIdle)

	return &Controller{
		client:    c,
		contentID: contentID,
		renderer:  r,
		notifier:  n,
		fsm:       fsm,
		messages:  append([]Message(nil), preload...),
		sessionID: sessionID,
	}
}

func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsm.MustState().(string)
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// AutoStart asks for the lesson intro when there is nothing to show yet. It
// fires at most once per controller unless the attempt fails.
func (c *Controller) AutoStart(ctx context.Context) error {
	c.mu.Lock()
	if len(c.messages) > 0 || c.started {
		c.mu.Unlock()
		return nil
	}
	if err := c.fsm.Fire(triggerSubmit); err != nil {
		c.mu.Unlock()
		return ErrBusy
	}
	c.started = true
	req := c.requestLocked()
	c.mu.Unlock()

	if err := c.stream(ctx, req); err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return err
	}
	return nil
}

// Submit sends input as the next user turn and streams the reply.
func (c *Controller) Submit(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if st, _ := c.fsm.State(ctx); st != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.localSeq++
	c.messages = append(c.messages, Message{
		ID:      fmt.Sprintf("local-%d", c.localSeq),
		Role:    "user",
		Content: input,
	})
	if err := c.fsm.Fire(triggerSubmit); err != nil {
		c.messages = c.messages[:len(c.messages)-1]
		c.mu.Unlock()
		return ErrBusy
	}
	req := c.requestLocked()
	snapshot := append([]Message(nil), c.messages...)
	c.mu.Unlock()

	c.render(snapshot)
	return c.stream(ctx, req)
}

func (c *Controller) requestLocked() ChatRequest {
	turns := make([]ChatTurn, 0, len(c.messages))
	for _, m := range c.messages {
		turns = append(turns, ChatTurn{Role: m.Role, Content: m.Content})
	}
	return ChatRequest{
		Messages:      turns,
		ContentID:     c.contentID,
		ChatSessionID: c.sessionID,
	}
}

// stream runs in the streaming state and always returns to idle.
func (c *Controller) stream(ctx context.Context, req ChatRequest) error {
	defer func() {
		c.mu.Lock()
		_ = c.fsm.Fire(triggerFinish)
		c.mu.Unlock()
	}()

	resp, err := c.client.StreamChat(ctx, req)
	if err != nil {
		c.notify(err)
		return err
	}
	defer resp.Body.Close()

	c.mu.Lock()
	if c.sessionID == "" && resp.SessionID != "" {
		c.sessionID = resp.SessionID
	}
	c.localSeq++
	c.messages = append(c.messages, Message{ID: fmt.Sprintf("local-%d", c.localSeq), Role: "assistant"})
	idx := len(c.messages) - 1
	snapshot := append([]Message(nil), c.messages...)
	c.mu.Unlock()
	c.render(snapshot)

	// the decoder holds back a rune split across reads until it is complete
	body := transform.NewReader(resp.Body, unicode.UTF8.NewDecoder())
	buf := make([]byte, 4096)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			c.mu.Lock()
			c.messages[idx].Content += string(buf[:n])
			snapshot = append([]Message(nil), c.messages...)
			c.mu.Unlock()
			c.render(snapshot)
		}
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			err := fmt.Errorf("read reply: %w", rerr)
			c.notify(err)
			return err
		}
	}
}

func (c *Controller) render(messages []Message) {
	if c.renderer != nil {
		c.renderer.Render(messages)
	}
}

func (c *Controller) notify(err error) {
	if c.notifier != nil {
		c.notifier.Notify(err)
	}
}
