// Package captcha issues arithmetic challenges and checks answers against the
// pending value held in the session store.
package captcha

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/m3rciful/membergate/internal/session"
)

// Scope is the session scope holding expected answers.
const Scope session.Scope = "captcha"

// Source yields uniform integers in [0, n).
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Range is an inclusive operand range.
type Range struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

func (r Range) draw(src Source) int {
	return r.Min + src.IntN(r.Max-r.Min+1)
}

// Config bounds the two operands.
type Config struct {
	First  Range `yaml:"first"`
	Second Range `yaml:"second"`
}

// Normalize fills the default ranges and validates bounds.
func (c *Config) Normalize() error {
	if c.First == (Range{}) {
		c.First = Range{Min: 10, Max: 50}
	}
	if c.Second == (Range{}) {
		c.Second = Range{Min: 5, Max: 30}
	}
	for name, r := range map[string]Range{"first": c.First, "second": c.Second} {
		if r.Min < 0 || r.Max < r.Min {
			return fmt.Errorf("captcha.%s: invalid range [%d,%d]", name, r.Min, r.Max)
		}
	}
	return nil
}

// Challenge is an issued question and its expected answer.
type Challenge struct {
	Prompt string
	Answer string
}

// Outcome is the result of checking a submission.
type Outcome int

const (
	// OutcomeNoChallenge means nothing is pending for the actor.
	OutcomeNoChallenge Outcome = iota
	// OutcomeWrong means the answer did not match; the challenge stays pending.
	OutcomeWrong
	// OutcomeCorrect means the answer matched and the challenge was cleared.
	OutcomeCorrect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWrong:
		return "wrong"
	case OutcomeCorrect:
		return "correct"
	default:
		return "no_challenge"
	}
}

// Generator draws challenges and tracks pending answers per user.
type Generator struct {
	cfg      Config
	src      Source
	sessions session.Store
}

// New constructs a Generator. A nil src uses math/rand/v2.
func New(cfg Config, sessions session.Store, src Source) (*Generator, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if src == nil {
		src = globalSource{}
	}
	return &Generator{cfg: cfg, src: src, sessions: sessions}, nil
}

// Draw produces a challenge without storing it.
func (g *Generator) Draw() Challenge {
	a := g.cfg.First.draw(g.src)
	b := g.cfg.Second.draw(g.src)
	if g.src.IntN(2) == 0 {
		return Challenge{Prompt: fmt.Sprintf("%d + %d", a, b), Answer: strconv.Itoa(a + b)}
	}
	return Challenge{Prompt: fmt.Sprintf("%d - %d", a, b), Answer: strconv.Itoa(a - b)}
}

// Issue draws a challenge for id, replacing any pending one.
func (g *Generator) Issue(ctx context.Context, id int64) (Challenge, error) {
	ch := g.Draw()
	if err := g.sessions.Put(ctx, Scope, id, ch.Answer); err != nil {
		return Challenge{}, fmt.Errorf("store challenge: %w", err)
	}
	return ch, nil
}

// Check compares the trimmed submission with the pending answer as strings.
func (g *Generator) Check(ctx context.Context, id int64, submitted string) (Outcome, error) {
	expected, ok, err := g.sessions.Get(ctx, Scope, id)
	if err != nil {
		return OutcomeNoChallenge, fmt.Errorf("load challenge: %w", err)
	}
	if !ok {
		return OutcomeNoChallenge, nil
	}
	if strings.TrimSpace(submitted) != expected {
		return OutcomeWrong, nil
	}
	// Take so that a concurrent correct submission is accepted only once.
	current, taken, err := g.sessions.Take(ctx, Scope, id)
	if err != nil {
		return OutcomeNoChallenge, fmt.Errorf("clear challenge: %w", err)
	}
	if !taken {
		return OutcomeNoChallenge, nil
	}
	if current != expected {
		// a newer challenge was issued after the read; it stays answerable
		if err := g.sessions.Put(ctx, Scope, id, current); err != nil {
			return OutcomeNoChallenge, fmt.Errorf("restore challenge: %w", err)
		}
		return OutcomeWrong, nil
	}
	return OutcomeCorrect, nil
}

// Discard drops any pending challenge for id.
func (g *Generator) Discard(ctx context.Context, id int64) error {
	if err := g.sessions.Delete(ctx, Scope, id); err != nil {
		return fmt.Errorf("discard challenge: %w", err)
	}
	return nil
}

// Pending reports whether id has an unanswered challenge.
func (g *Generator) Pending(ctx context.Context, id int64) (bool, error) {
	_, ok, err := g.sessions.Get(ctx, Scope, id)
	return ok, err
}
