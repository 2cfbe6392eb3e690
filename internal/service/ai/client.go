package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/zhouzirui/clone-chat/backend/internal/model/chat"
)

// Request is one chat turn to send to the model.
type Request struct {
	Message       string
	PersonaPrompt string
	// PersonaName labels the model's lines. When empty it is recovered
	// from the persona prompt header.
	PersonaName string
	History     []chat.Turn
}

// Client flattens a conversation into a single prompt and calls the
// generator, retrying once with a persona-less prompt.
type Client struct {
	generator  Generator
	credential string
	tmpl       *PromptTemplate
}

// NewClient creates a client. An empty credential or nil generator makes
// every Send fail with ErrMissingCredential. A nil template selects Japanese.
func NewClient(generator Generator, credential string, tmpl *PromptTemplate) *Client {
	if tmpl == nil {
		tmpl = japaneseTemplate
	}
	return &Client{
		generator:  generator,
		credential: strings.TrimSpace(credential),
		tmpl:       tmpl,
	}
}

// Configured reports whether Send can reach the generator.
func (c *Client) Configured() bool {
	return c.credential != "" && c.generator != nil
}

// Template returns the prompt template the client renders with.
func (c *Client) Template() *PromptTemplate {
	return c.tmpl
}

// Send returns the model's reply verbatim. Errors are always one of
// ErrMissingCredential, ErrInvalidCredential or ErrGenerationFailed.
func (c *Client) Send(ctx context.Context, req Request) (string, error) {
	if !c.Configured() {
		return "", ErrMissingCredential
	}

	name := strings.TrimSpace(req.PersonaName)
	if name == "" {
		name = c.tmpl.ExtractName(req.PersonaPrompt)
	}

	text, err := c.generator.Generate(ctx, c.ConversationPrompt(req.PersonaPrompt, name, req.History, req.Message))
	if err == nil {
		log.Printf("[ai] generated reply, history=%d, length=%d", len(req.History), len(text))
		return text, nil
	}
	log.Printf("[ai] primary generation failed, retrying with fallback prompt: %v", err)

	text, fallbackErr := c.generator.Generate(ctx, c.FallbackPrompt(req.Message))
	if fallbackErr == nil {
		log.Printf("[ai] fallback prompt succeeded, length=%d", len(text))
		return text, nil
	}
	log.Printf("[ai] fallback prompt also failed: %v", fallbackErr)

	if isCredentialError(err) || isCredentialError(fallbackErr) {
		return "", fmt.Errorf("%w: %w", ErrInvalidCredential, fallbackErr)
	}
	return "", fmt.Errorf("%w: %w", ErrGenerationFailed, fallbackErr)
}

// Describe maps an error returned by Send to its user-facing message.
func (c *Client) Describe(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return c.tmpl.MissingCredentialMessage
	case errors.Is(err, ErrInvalidCredential):
		return c.tmpl.InvalidCredentialMessage
	default:
		return c.tmpl.GenerationFailedMessage
	}
}

// ConversationPrompt renders the persona prompt, the prior turns, the new
// user line and the cue for the persona's reply as one text blob.
func (c *Client) ConversationPrompt(personaPrompt, name string, history []chat.Turn, message string) string {
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		speaker := name
		if turn.Role == chat.RoleUser {
			speaker = c.tmpl.UserLabel
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, turn.Text))
	}

	var b strings.Builder
	b.WriteString(personaPrompt)
	b.WriteString("\n\n")
	b.WriteString(c.tmpl.HistoryHeading)
	b.WriteString("\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s: %s\n\n%s:", c.tmpl.UserLabel, message, name)
	return b.String()
}

// FallbackPrompt is the minimal single-turn prompt used for the retry.
func (c *Client) FallbackPrompt(message string) string {
	return fmt.Sprintf("%s\n\n%s: %s\n\n%s:", c.tmpl.FallbackInstruction, c.tmpl.UserLabel, message, c.tmpl.FallbackReplyLabel)
}
