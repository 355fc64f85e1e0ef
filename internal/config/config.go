// Package config loads the application configuration: the reusable core
// settings plus everything the membership gate adds on top.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/membergate/core/config"
	coredatabase "github.com/m3rciful/membergate/core/database"
	"github.com/m3rciful/membergate/internal/broadcast"
	"github.com/m3rciful/membergate/internal/captcha"
	"github.com/m3rciful/membergate/internal/member"
	"github.com/m3rciful/membergate/internal/onboarding"
	"github.com/m3rciful/membergate/internal/present"
	"github.com/m3rciful/membergate/internal/session"
)

// MembersConfig holds defaults written into new member records.
type MembersConfig struct {
	Country string `yaml:"country" envconfig:"MEMBER_COUNTRY"`
}

// OpsConfig configures the operational HTTP endpoint. An empty Listen
// disables it.
type OpsConfig struct {
	Listen          string        `yaml:"listen" envconfig:"OPS_LISTEN"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"OPS_SHUTDOWN_TIMEOUT"`
}

// Enabled reports whether the ops server should run.
func (c OpsConfig) Enabled() bool {
	return strings.TrimSpace(c.Listen) != ""
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database     coredatabase.Config `yaml:"database"`
	Session      session.Config      `yaml:"session"`
	Captcha      captcha.Config      `yaml:"captcha"`
	Onboarding   onboarding.Config   `yaml:"onboarding"`
	Broadcast    broadcast.Config    `yaml:"broadcast"`
	Members      MembersConfig       `yaml:"members"`
	Presentation present.Config      `yaml:"presentation"`
	Ops          OpsConfig           `yaml:"ops"`
}

// CoreConfig exposes the embedded core settings to the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads the YAML file at path, applies environment overrides and
// validates every section.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates all sections and fills their defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	sections := []struct {
		name string
		fn   func() error
	}{
		{"database", c.Database.Normalize},
		{"session", c.Session.Normalize},
		{"captcha", c.Captcha.Normalize},
		{"broadcast", c.Broadcast.Normalize},
		{"presentation", c.Presentation.Normalize},
	}
	for _, s := range sections {
		if err := s.fn(); err != nil {
			return fmt.Errorf("config %s: %w", s.name, err)
		}
	}
	c.Members.Country = strings.TrimSpace(c.Members.Country)
	if c.Members.Country == "" {
		c.Members.Country = member.DefaultCountry
	}
	if c.Ops.ShutdownTimeout < 0 {
		return fmt.Errorf("config ops: shutdown_timeout must be >= 0")
	}
	if c.Ops.ShutdownTimeout == 0 {
		c.Ops.ShutdownTimeout = 5 * time.Second
	}
	return nil
}
