package present

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/membergate/core/telegram/format"
)

// Frame is one animation step: the text shown and how long it stays.
type Frame struct {
	Text  string        `yaml:"text"`
	Delay time.Duration `yaml:"delay"`
}

// Sequence is an ordered list of frames.
type Sequence []Frame

// Total is the time the sequence takes to play.
func (s Sequence) Total() time.Duration {
	var d time.Duration
	for _, f := range s {
		d += f.Delay
	}
	return d
}

// Screen shows animation frames; the first Show creates the message and later
// calls replace it.
type Screen interface {
	Show(ctx context.Context, text string) error
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Play shows every frame in order, waiting each frame's delay after it.
// Frame texts are plain and escaped here.
func Play(ctx context.Context, seq Sequence, screen Screen, sleep Sleeper) error {
	if sleep == nil {
		sleep = SleepContext
	}
	for i, f := range seq {
		if err := screen.Show(ctx, format.V2(f.Text)); err != nil {
			return fmt.Errorf("animation frame %d: %w", i, err)
		}
		if err := sleep(ctx, f.Delay); err != nil {
			return err
		}
	}
	return nil
}

const (
	SequenceLoading = "loading"
	SequenceWelcome = "welcome"
	SequenceProfile = "profile"
)

// DefaultSequences returns the built-in animations. The welcome sequence
// contains a %s placeholder for the member's first name.
func DefaultSequences() map[string]Sequence {
	loading := Sequence{}
	bars := []string{
		"▱▱▱▱▱▱▱▱▱▱ 0%",
		"▰▱▱▱▱▱▱▱▱▱ 10%",
		"▰▰▰▱▱▱▱▱▱▱ 30%",
		"▰▰▰▰▰▱▱▱▱▱ 50%",
		"▰▰▰▰▰▰▰▱▱▱ 70%",
		"▰▰▰▰▰▰▰▰▰▱ 90%",
		"▰▰▰▰▰▰▰▰▰▰ 100%",
	}
	for _, bar := range bars {
		loading = append(loading, Frame{Text: "🔄 INITIALIZING SYSTEM\n\n" + bar, Delay: 200 * time.Millisecond})
	}
	loading = append(loading,
		Frame{Text: "✅ SYSTEM READY", Delay: 200 * time.Millisecond},
		Frame{Text: "🔍 VERIFYING DATABASE ACCESS", Delay: 800 * time.Millisecond},
		Frame{Text: "🔍 Checking membership records...", Delay: 800 * time.Millisecond},
		Frame{Text: "🔍 Validating credentials...", Delay: 800 * time.Millisecond},
		Frame{Text: "🔍 Loading member profile...", Delay: 800 * time.Millisecond},
		Frame{Text: "✅ Database access verified", Delay: 800 * time.Millisecond},
		Frame{Text: "🛡 SECURITY SCAN", Delay: 800 * time.Millisecond},
		Frame{Text: "🛡 Scanning session...", Delay: time.Second},
		Frame{Text: "🛡 Checking for threats...", Delay: time.Second},
		Frame{Text: "🛡 Encrypting connection...", Delay: time.Second},
		Frame{Text: "✅ Security scan complete", Delay: time.Second},
	)

	profile := Sequence{}
	for _, bar := range []string{"▱▱▱▱", "▰▱▱▱", "▰▰▱▱", "▰▰▰▱", "▰▰▰▰", "▰▰▰▱", "▰▰▱▱", "▰▱▱▱"} {
		profile = append(profile, Frame{Text: "👤 Loading profile " + bar, Delay: 150 * time.Millisecond})
	}

	return map[string]Sequence{
		SequenceLoading: loading,
		SequenceWelcome: {
			{Text: "👋 Welcome, %s", Delay: time.Second},
			{Text: "🔓 System Access Granted", Delay: time.Second},
			{Text: "🎫 Membership Verified", Delay: time.Second},
			{Text: "✨ Profile Activated", Delay: time.Second},
		},
		SequenceProfile: profile,
	}
}

// Personalize substitutes name into every frame that carries a %s verb.
func (s Sequence) Personalize(name string) Sequence {
	out := make(Sequence, len(s))
	for i, f := range s {
		out[i] = f
		if strings.Contains(f.Text, "%s") {
			out[i].Text = strings.ReplaceAll(f.Text, "%s", name)
		}
	}
	return out
}
