package captcha

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/membergate/internal/session"
)

// seqSource replays fixed draws.
type seqSource struct {
	vals []int
	i    int
}

func (s *seqSource) IntN(n int) int {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v % n
}

func newGen(t *testing.T, draws ...int) (*Generator, *session.Memory) {
	t.Helper()
	store := session.NewMemory(nil)
	g, err := New(Config{}, store, &seqSource{vals: draws})
	require.NoError(t, err)
	return g, store
}

func TestIssueDeterministic(t *testing.T) {
	g, _ := newGen(t, 5, 2, 0)
	ch, err := g.Issue(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, "15 + 7", ch.Prompt)
	assert.Equal(t, "22", ch.Answer)
}

func TestSubtraction(t *testing.T) {
	g, _ := newGen(t, 0, 25, 1)
	ch := g.Draw()
	assert.Equal(t, "10 - 30", ch.Prompt)
	assert.Equal(t, "-20", ch.Answer)
}

func TestDrawBounds(t *testing.T) {
	store := session.NewMemory(nil)
	g, err := New(Config{}, store, &seqSource{vals: []int{40, 25, 0}})
	require.NoError(t, err)
	assert.Equal(t, "50 + 30", g.Draw().Prompt, "upper bounds are inclusive")
}

func TestCheckLifecycle(t *testing.T) {
	ctx := context.Background()
	g, _ := newGen(t, 5, 2, 0)

	out, err := g.Check(ctx, 1001, "22")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChallenge, out)

	_, err = g.Issue(ctx, 1001)
	require.NoError(t, err)

	out, err = g.Check(ctx, 1001, "21")
	require.NoError(t, err)
	assert.Equal(t, OutcomeWrong, out)

	pending, err := g.Pending(ctx, 1001)
	require.NoError(t, err)
	assert.True(t, pending, "wrong answer keeps the challenge")

	out, err = g.Check(ctx, 1001, "  22\n")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCorrect, out)

	out, err = g.Check(ctx, 1001, "22")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChallenge, out, "correct answer is accepted once")
}

func TestCheckIsStringComparison(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemory(nil)
	g, err := New(Config{}, store, nil)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, Scope, 5, "7"))

	out, err := g.Check(ctx, 5, "07")
	require.NoError(t, err)
	assert.Equal(t, OutcomeWrong, out)
}

func TestReissueReplaces(t *testing.T) {
	ctx := context.Background()
	g, _ := newGen(t, 5, 2, 0, 0, 0, 1)

	first, err := g.Issue(ctx, 1)
	require.NoError(t, err)
	second, err := g.Issue(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "10 - 5", second.Prompt)

	out, err := g.Check(ctx, 1, first.Answer)
	require.NoError(t, err)
	assert.Equal(t, OutcomeWrong, out, "only the latest challenge is answerable")

	out, err = g.Check(ctx, 1, second.Answer)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCorrect, out)
}

// reissuingStore runs afterGet once, between Check's read and its take.
type reissuingStore struct {
	*session.Memory
	afterGet func()
}

func (s *reissuingStore) Get(ctx context.Context, scope session.Scope, actor int64) (string, bool, error) {
	v, ok, err := s.Memory.Get(ctx, scope, actor)
	if fn := s.afterGet; fn != nil {
		s.afterGet = nil
		fn()
	}
	return v, ok, err
}

func TestCheckKeepsChallengeReissuedMidCheck(t *testing.T) {
	ctx := context.Background()
	store := &reissuingStore{Memory: session.NewMemory(nil)}
	g, err := New(Config{}, store, &seqSource{vals: []int{5, 2, 0, 0, 0, 1}})
	require.NoError(t, err)

	first, err := g.Issue(ctx, 1)
	require.NoError(t, err)
	var second Challenge
	store.afterGet = func() {
		second, err = g.Issue(ctx, 1)
		require.NoError(t, err)
	}

	out, err := g.Check(ctx, 1, first.Answer)
	require.NoError(t, err)
	assert.Equal(t, OutcomeWrong, out, "the replaced answer is not accepted")

	answer, ok, err := store.Memory.Get(ctx, Scope, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.Answer, answer)

	out, err = g.Check(ctx, 1, second.Answer)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCorrect, out, "the newer challenge stays answerable")
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	g, _ := newGen(t, 5, 2, 0)

	ch, err := g.Issue(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, g.Discard(ctx, 1))
	require.NoError(t, g.Discard(ctx, 1))

	out, err := g.Check(ctx, 1, ch.Answer)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChallenge, out)
}

func TestConfigNormalize(t *testing.T) {
	var c Config
	require.NoError(t, c.Normalize())
	assert.Equal(t, Range{10, 50}, c.First)
	assert.Equal(t, Range{5, 30}, c.Second)

	c = Config{First: Range{Min: 5, Max: 1}}
	assert.Error(t, c.Normalize())
}
