// Package onboarding drives a user from first contact through the captcha to
// the admin's decision.
package onboarding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/membergate/core/logger"
	"github.com/m3rciful/membergate/internal/captcha"
	"github.com/m3rciful/membergate/internal/member"
)

// MemberStore is the subset of member.Store used here.
type MemberStore interface {
	Get(ctx context.Context, id int64) (member.Record, error)
	Upsert(ctx context.Context, p member.Profile) (member.Record, error)
	Advance(ctx context.Context, id int64, status member.Status, from ...member.Status) (bool, error)
}

// Challenger issues and checks captcha challenges.
type Challenger interface {
	Issue(ctx context.Context, id int64) (captcha.Challenge, error)
	Check(ctx context.Context, id int64, submitted string) (captcha.Outcome, error)
	Discard(ctx context.Context, id int64) error
}

// AdminNotifier tells the admin a user is waiting for review.
type AdminNotifier interface {
	NotifyApplicant(ctx context.Context, rec member.Record) error
}

// Config holds onboarding policy.
type Config struct {
	// AllowReapply lets rejected users start over with /start; nil means true.
	AllowReapply *bool `yaml:"allow_reapply"`
}

// Reapply resolves AllowReapply with its default.
func (c Config) Reapply() bool {
	return c.AllowReapply == nil || *c.AllowReapply
}

// StartKind is the branch taken by Start.
type StartKind int

const (
	// StartChallenge means a new challenge was issued.
	StartChallenge StartKind = iota
	// StartApproved means the user is already a member.
	StartApproved
	// StartUnderReview means the user already passed the captcha.
	StartUnderReview
	// StartRejected means the user was rejected and may not re-apply.
	StartRejected
)

func (k StartKind) String() string {
	switch k {
	case StartApproved:
		return "approved"
	case StartUnderReview:
		return "under_review"
	case StartRejected:
		return "rejected"
	default:
		return "challenge"
	}
}

// StartResult is returned by Start.
type StartResult struct {
	Kind      StartKind
	Record    member.Record
	Challenge captcha.Challenge
}

// AnswerKind is the branch taken by Answer.
type AnswerKind int

const (
	// AnswerNotPending means no challenge is pending; the text is not an answer.
	AnswerNotPending AnswerKind = iota
	// AnswerWrong means the answer did not match.
	AnswerWrong
	// AnswerAccepted means the captcha passed and the admin was notified.
	AnswerAccepted
)

func (k AnswerKind) String() string {
	switch k {
	case AnswerWrong:
		return "wrong"
	case AnswerAccepted:
		return "accepted"
	default:
		return "not_pending"
	}
}

// AnswerResult is returned by Answer.
type AnswerResult struct {
	Kind   AnswerKind
	Record member.Record
}

// Service implements the onboarding transitions.
type Service struct {
	members  MemberStore
	captcha  Challenger
	notifier AdminNotifier
	reapply  bool
}

// New constructs a Service.
func New(cfg Config, members MemberStore, challenger Challenger, notifier AdminNotifier) *Service {
	return &Service{
		members:  members,
		captcha:  challenger,
		notifier: notifier,
		reapply:  cfg.Reapply(),
	}
}

// Start handles a contact event: the record is refreshed and the user is either
// greeted as a member, told to wait, or given a fresh challenge.
func (s *Service) Start(ctx context.Context, p member.Profile) (StartResult, error) {
	rec, err := s.members.Upsert(ctx, p)
	if err != nil {
		return StartResult{}, fmt.Errorf("start: %w", err)
	}

	switch {
	case rec.Approved():
		return StartResult{Kind: StartApproved, Record: rec}, nil
	case rec.Status == member.StatusAwaitingReview:
		return StartResult{Kind: StartUnderReview, Record: rec}, nil
	case rec.Status == member.StatusRejected && !s.reapply:
		return StartResult{Kind: StartRejected, Record: rec}, nil
	}

	ch, err := s.captcha.Issue(ctx, rec.ID)
	if err != nil {
		return StartResult{}, fmt.Errorf("start: %w", err)
	}
	logger.Info(ctx, "gate", "captcha.issued",
		slog.Int64("member_id", rec.ID),
		slog.String("member_status", string(rec.Status)),
	)
	return StartResult{Kind: StartChallenge, Record: rec, Challenge: ch}, nil
}

// Answer checks free text from the user against the pending challenge. Only
// unverified users, and rejected ones when re-applying is allowed, move to
// review; a challenge left open after the admin decided is dropped and the
// text is not treated as an answer.
func (s *Service) Answer(ctx context.Context, id int64, text string) (AnswerResult, error) {
	outcome, err := s.captcha.Check(ctx, id, text)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("answer: %w", err)
	}
	if outcome == captcha.OutcomeNoChallenge {
		return AnswerResult{Kind: AnswerNotPending}, nil
	}

	rec, err := s.members.Get(ctx, id)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("answer: %w", err)
	}
	if !s.canApply(rec.Status) {
		return s.settled(ctx, rec)
	}
	if outcome == captcha.OutcomeWrong {
		logger.Debug(ctx, "gate", "captcha.wrong", slog.Int64("member_id", id))
		return AnswerResult{Kind: AnswerWrong}, nil
	}

	moved, err := s.members.Advance(ctx, id, member.StatusAwaitingReview, member.StatusUnverified, member.StatusRejected)
	if err != nil {
		return AnswerResult{}, fmt.Errorf("answer: %w", err)
	}
	if rec, err = s.members.Get(ctx, id); err != nil {
		return AnswerResult{}, fmt.Errorf("answer: %w", err)
	}
	if !moved {
		// decided between the read and the write
		return AnswerResult{Kind: AnswerNotPending, Record: rec}, nil
	}
	logger.Info(ctx, "gate", "captcha.passed", slog.Int64("member_id", id))

	if s.notifier != nil {
		if err := s.notifier.NotifyApplicant(ctx, rec); err != nil {
			logger.Error(ctx, "gate", "admin.notify_failed",
				slog.Int64("member_id", id),
				slog.Any("err", err),
			)
		}
	}
	return AnswerResult{Kind: AnswerAccepted, Record: rec}, nil
}

func (s *Service) canApply(st member.Status) bool {
	return st == member.StatusUnverified || (st == member.StatusRejected && s.reapply)
}

// settled clears a stale challenge for a user whose review already happened.
func (s *Service) settled(ctx context.Context, rec member.Record) (AnswerResult, error) {
	if err := s.captcha.Discard(ctx, rec.ID); err != nil {
		return AnswerResult{}, fmt.Errorf("answer: %w", err)
	}
	logger.Info(ctx, "gate", "captcha.discarded",
		slog.Int64("member_id", rec.ID),
		slog.String("member_status", string(rec.Status)),
	)
	return AnswerResult{Kind: AnswerNotPending, Record: rec}, nil
}

// Profile returns the stored record for the show-profile command.
func (s *Service) Profile(ctx context.Context, id int64) (member.Record, error) {
	rec, err := s.members.Get(ctx, id)
	if err != nil {
		return member.Record{}, fmt.Errorf("profile: %w", err)
	}
	return rec, nil
}
