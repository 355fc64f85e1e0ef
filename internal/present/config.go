package present

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config controls branding and animations.
type Config struct {
	Brand      string `yaml:"brand" envconfig:"BRAND"`
	SupportURL string `yaml:"support_url" envconfig:"SUPPORT_URL"`
	// Animations defaults to true when unset.
	Animations *bool               `yaml:"animations" envconfig:"ANIMATIONS"`
	Timezone   string              `yaml:"timezone" envconfig:"TIMEZONE"`
	Sequences  map[string]Sequence `yaml:"sequences"`
}

// Normalize fills defaults and validates the support URL and time zone.
func (c *Config) Normalize() error {
	c.Brand = strings.TrimSpace(c.Brand)
	if c.Brand == "" {
		c.Brand = "Members Club"
	}
	if c.SupportURL != "" {
		u, err := url.Parse(c.SupportURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("presentation: support_url %q is not an absolute URL", c.SupportURL)
		}
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("presentation: timezone: %w", err)
		}
	}
	for name, seq := range c.Sequences {
		for i, f := range seq {
			if f.Delay < 0 {
				return fmt.Errorf("presentation: sequence %s frame %d: negative delay", name, i)
			}
		}
	}
	return nil
}

// AnimationsEnabled reports whether sequences should be played.
func (c Config) AnimationsEnabled() bool {
	return c.Animations == nil || *c.Animations
}

// Sequence returns the configured sequence by name, falling back to the
// built-in one. It is empty when animations are disabled.
func (c Config) Sequence(name string) Sequence {
	if !c.AnimationsEnabled() {
		return nil
	}
	if seq, ok := c.Sequences[name]; ok {
		return seq
	}
	return DefaultSequences()[name]
}

// Templates builds the message renderer for this configuration.
func (c Config) Templates() Templates {
	t := Templates{Brand: c.Brand, SupportURL: c.SupportURL}
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			t.Location = loc
		}
	}
	return t
}
