package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slack-go/slack"
)

// SlackConfig holds the Slack app configuration for the concrete Notifier.
type SlackConfig struct {
	BotToken string
	Channel  string
	// AskTimeout bounds how long Ask waits for an interactive reply before
	// giving up; the caller (approval workflow) still owns the authoritative
	// timeout via its own timer.
	AskTimeout time.Duration
}

// Slack is a concrete Notifier backed by the Slack Web API. Interactive
// message buttons map onto {label, callback_id} pairs via Slack's action
// blocks.
type Slack struct {
	client  *slack.Client
	channel string
	timeout time.Duration

	mu        sync.Mutex
	pending   map[string]chan string // message ts → reply channel
}

// NewSlack creates a Slack-backed Notifier.
func NewSlack(cfg SlackConfig) *Slack {
	timeout := cfg.AskTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Slack{
		client:  slack.New(cfg.BotToken),
		channel: cfg.Channel,
		timeout: timeout,
		pending: make(map[string]chan string),
	}
}

// Notify posts a plain-text message to the configured channel.
func (s *Slack) Notify(_ context.Context, text string) error {
	_, _, err := s.client.PostMessage(s.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack notify: %w", err)
	}
	return nil
}

// Ask posts an interactive message with action buttons and blocks until a
// reply arrives on HandleInteraction or the ask timeout elapses.
func (s *Slack) Ask(ctx context.Context, text string, buttons []Button) (string, error) {
	elements := make([]slack.BlockElement, 0, len(buttons))
	for _, b := range buttons {
		elements = append(elements, slack.NewButtonBlockElement(b.CallbackID, b.CallbackID, slack.NewTextBlockObject(slack.PlainTextType, b.Label, false, false)))
	}
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
		slack.NewActionBlock("atlas_ask", elements...),
	}

	_, ts, err := s.client.PostMessage(s.channel, slack.MsgOptionBlocks(blocks...))
	if err != nil {
		return "", fmt.Errorf("slack ask: %w", err)
	}

	reply := make(chan string, 1)
	s.mu.Lock()
	s.pending[ts] = reply
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, ts)
		s.mu.Unlock()
	}()

	select {
	case cb := <-reply:
		return cb, nil
	case <-time.After(s.timeout):
		return "", fmt.Errorf("slack ask: no interaction within %s", s.timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// HandleInteraction delivers an interaction callback (from the Slack
// Interactivity webhook) to the matching in-flight Ask, identified by the
// original message's timestamp.
func (s *Slack) HandleInteraction(messageTS, callbackID string) {
	s.mu.Lock()
	reply, ok := s.pending[messageTS]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case reply <- callbackID:
	default:
	}
}
