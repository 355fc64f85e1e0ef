package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/membergate/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start"})
	reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "Stats", AdminOnly: true})
	reg.RegisterCommand("help", commands.Command{Handler: noop, Description: "no slash"})
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "dup"})

	assert.Len(t, reg.Commands(), 2)
	assert.Equal(t, []tele.Command{{Text: "start", Description: "Start"}}, reg.ListCommands(true))
	assert.Len(t, reg.ListCommands(false), 2)

	key, cmd, ok := reg.LookupCommand("/start 1001")
	require.True(t, ok)
	assert.Equal(t, "/start", key)
	assert.Equal(t, "Start", cmd.Description)

	_, _, ok = reg.LookupCommand("   ")
	assert.False(t, ok)
}

func TestRegistryLookupAliasesAndMention(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/profile", commands.Command{Handler: noop, Description: "Profile", Aliases: []string{"me"}})

	for _, text := range []string{"/profile", "/profile@membergate_bot", "/me", "/me@membergate_bot extra"} {
		key, _, ok := reg.LookupCommand(text)
		require.True(t, ok, text)
		assert.Equal(t, "/profile", key, text)
	}
	for _, text := range []string{"/unknown", "profile", ""} {
		_, _, ok := reg.LookupCommand(text)
		assert.False(t, ok, text)
	}
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("approve", noop))
	assert.Error(t, reg.RegisterCallback("approve", noop))
	assert.Error(t, reg.RegisterCallback("", noop))

	_, ok := reg.GetCallback("approve")
	assert.True(t, ok)
	assert.Equal(t, []string{"approve"}, reg.ListCallbacks())
	assert.NotNil(t, reg.CallbackNotFound())
}

func TestBuildPoller(t *testing.T) {
	p := BuildPoller(PollerOptions{RunMode: "longpoll"})
	lp, ok := p.(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, lp.Timeout)

	p = BuildPoller(PollerOptions{RunMode: "webhook", Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example.com"}})
	wh, ok := p.(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "https://bot.example.com", wh.Endpoint.PublicURL)
}
