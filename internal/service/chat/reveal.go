package chat

import (
	"context"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

// Typing speed bounds per revealed character.
const (
	minRevealInterval = 10 * time.Millisecond
	maxRevealInterval = 20 * time.Millisecond
	defaultThinkDelay = 500 * time.Millisecond
)

// EmitFunc receives one revealed fragment of a reply.
type EmitFunc func(delta string) error

// Revealer paces a finished reply out one character at a time. Longer
// replies are typed faster.
type Revealer struct {
	// Delay is waited once before the first character.
	Delay time.Duration
	// Interval returns the pause between characters for a reply.
	Interval func(text string) time.Duration
}

// NewRevealer creates a revealer with the default typing speed.
func NewRevealer() *Revealer {
	return &Revealer{
		Delay:    defaultThinkDelay,
		Interval: TypingInterval,
	}
}

// TypingInterval is 20ms per character minus 1ms per 100 characters,
// never below 10ms.
func TypingInterval(text string) time.Duration {
	interval := maxRevealInterval - time.Duration(utf8.RuneCountInString(text)/100)*time.Millisecond
	if interval < minRevealInterval {
		return minRevealInterval
	}
	return interval
}

// Reveal emits text rune by rune. It stops with the context error when ctx
// is cancelled or with the first emit error.
func (r *Revealer) Reveal(ctx context.Context, text string, emit EmitFunc) error {
	if text == "" {
		return nil
	}

	if r.Delay > 0 {
		timer := time.NewTimer(r.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	intervalFn := r.Interval
	if intervalFn == nil {
		intervalFn = TypingInterval
	}
	limiter := rate.NewLimiter(rate.Every(intervalFn(text)), 1)

	for _, ch := range text {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if err := emit(string(ch)); err != nil {
			return err
		}
	}
	return nil
}
