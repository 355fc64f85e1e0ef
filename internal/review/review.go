// Package review implements the admin-only operations: listing members,
// deciding applications and editing stored fields.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/membergate/core/logger"
	"github.com/m3rciful/membergate/internal/captcha"
	"github.com/m3rciful/membergate/internal/member"
	"github.com/m3rciful/membergate/internal/session"
)

var (
	// ErrAccessDenied is returned when a non-admin calls an admin operation.
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidTarget is returned for a non-numeric or non-positive member id.
	ErrInvalidTarget = errors.New("invalid target id")
)

// FieldEditScope is the session scope of the pending field edit slot.
const FieldEditScope session.Scope = "field_edit"

// MemberStore is the subset of member.Store used here.
type MemberStore interface {
	Get(ctx context.Context, id int64) (member.Record, error)
	List(ctx context.Context) ([]member.Record, error)
	ListPending(ctx context.Context) ([]member.Record, error)
	Stats(ctx context.Context) (member.Stats, error)
	SetStatus(ctx context.Context, id int64, status member.Status) error
	SetField(ctx context.Context, id int64, field member.Field, value string) error
}

// MemberNotifier tells a member about the admin's decision.
type MemberNotifier interface {
	NotifyDecision(ctx context.Context, rec member.Record) error
}

// Edit describes an applied field change.
type Edit struct {
	Target int64
	Field  member.Field
	Value  string
	Record member.Record
}

// Service is the admin review workflow.
type Service struct {
	admin    int64
	members  MemberStore
	sessions session.Store
	notifier MemberNotifier
}

// New constructs a Service for the single configured admin.
func New(admin int64, members MemberStore, sessions session.Store, notifier MemberNotifier) *Service {
	return &Service{admin: admin, members: members, sessions: sessions, notifier: notifier}
}

// Admin returns the configured admin id.
func (s *Service) Admin() int64 { return s.admin }

// IsAdmin reports whether actor is the admin.
func (s *Service) IsAdmin(actor int64) bool {
	return s.admin != 0 && actor == s.admin
}

// Authorize fails with ErrAccessDenied unless actor is the admin.
func (s *Service) Authorize(ctx context.Context, actor int64) error {
	if s.IsAdmin(actor) {
		return nil
	}
	logger.Warn(ctx, "review", "access.denied", slog.Int64("user_id", actor))
	return ErrAccessDenied
}

// Pending lists members that are not approved yet.
func (s *Service) Pending(ctx context.Context, actor int64) ([]member.Record, error) {
	if err := s.Authorize(ctx, actor); err != nil {
		return nil, err
	}
	return s.members.ListPending(ctx)
}

// Users lists every member, newest first.
func (s *Service) Users(ctx context.Context, actor int64) ([]member.Record, error) {
	if err := s.Authorize(ctx, actor); err != nil {
		return nil, err
	}
	return s.members.List(ctx)
}

// Stats returns member counts.
func (s *Service) Stats(ctx context.Context, actor int64) (member.Stats, error) {
	if err := s.Authorize(ctx, actor); err != nil {
		return member.Stats{}, err
	}
	return s.members.Stats(ctx)
}

// Lookup returns one member record.
func (s *Service) Lookup(ctx context.Context, actor, target int64) (member.Record, error) {
	if err := s.Authorize(ctx, actor); err != nil {
		return member.Record{}, err
	}
	return s.members.Get(ctx, target)
}

// Approve marks target approved and notifies them.
func (s *Service) Approve(ctx context.Context, actor, target int64) (member.Record, error) {
	return s.decide(ctx, actor, target, member.StatusApproved)
}

// Reject marks target rejected and notifies them.
func (s *Service) Reject(ctx context.Context, actor, target int64) (member.Record, error) {
	return s.decide(ctx, actor, target, member.StatusRejected)
}

func (s *Service) decide(ctx context.Context, actor, target int64, status member.Status) (member.Record, error) {
	if err := s.Authorize(ctx, actor); err != nil {
		return member.Record{}, err
	}
	if _, err := s.members.Get(ctx, target); err != nil {
		return member.Record{}, err
	}
	if err := s.members.SetStatus(ctx, target, status); err != nil {
		return member.Record{}, err
	}
	s.dropChallenge(ctx, target)
	rec, err := s.members.Get(ctx, target)
	if err != nil {
		return member.Record{}, err
	}
	logger.Info(ctx, "review", "member.decided",
		slog.Int64("target_id", target),
		slog.String("member_status", string(status)),
	)

	if s.notifier != nil {
		if err := s.notifier.NotifyDecision(ctx, rec); err != nil {
			logger.Warn(ctx, "review", "member.notify_failed",
				slog.Int64("target_id", target),
				slog.Any("err", err),
			)
		}
	}
	return rec, nil
}

// dropChallenge removes a captcha still open for a member the admin has just
// decided, so a late answer cannot reopen the review.
func (s *Service) dropChallenge(ctx context.Context, target int64) {
	if err := s.sessions.Delete(ctx, captcha.Scope, target); err != nil {
		logger.Warn(ctx, "review", "challenge.drop_failed",
			slog.Int64("target_id", target),
			slog.Any("err", err),
		)
	}
}

// SelectField remembers which field of target the admin's next text edits.
// A later selection replaces an earlier one.
func (s *Service) SelectField(ctx context.Context, actor, target int64, key string) (member.Field, error) {
	if err := s.Authorize(ctx, actor); err != nil {
		return 0, err
	}
	field, err := member.ParseField(key)
	if err != nil {
		return 0, err
	}
	if _, err := s.members.Get(ctx, target); err != nil {
		return 0, err
	}
	slot := strconv.FormatInt(target, 10) + "|" + field.Key()
	if err := s.sessions.Put(ctx, FieldEditScope, actor, slot); err != nil {
		return 0, fmt.Errorf("store field edit: %w", err)
	}
	logger.Debug(ctx, "review", "field.selected",
		slog.Int64("target_id", target),
		slog.String("field", field.Key()),
	)
	return field, nil
}

// ApplyField consumes the pending field edit and writes value. The bool is
// false when no edit was pending.
func (s *Service) ApplyField(ctx context.Context, actor int64, value string) (Edit, bool, error) {
	if !s.IsAdmin(actor) {
		return Edit{}, false, nil
	}
	slot, ok, err := s.sessions.Take(ctx, FieldEditScope, actor)
	if err != nil {
		return Edit{}, false, fmt.Errorf("load field edit: %w", err)
	}
	if !ok {
		return Edit{}, false, nil
	}
	target, field, err := parseSlot(slot)
	if err != nil {
		return Edit{}, true, err
	}
	if err := s.members.SetField(ctx, target, field, value); err != nil {
		return Edit{Target: target, Field: field, Value: value}, true, err
	}
	if field == member.FieldApproval {
		s.dropChallenge(ctx, target)
	}
	rec, err := s.members.Get(ctx, target)
	if err != nil {
		return Edit{Target: target, Field: field, Value: value}, true, err
	}
	logger.Info(ctx, "review", "field.updated",
		slog.Int64("target_id", target),
		slog.String("field", field.Key()),
	)
	return Edit{Target: target, Field: field, Value: value, Record: rec}, true, nil
}

func parseSlot(slot string) (int64, member.Field, error) {
	idPart, key, ok := strings.Cut(slot, "|")
	if !ok {
		return 0, 0, fmt.Errorf("malformed field edit %q", slot)
	}
	target, err := ParseTarget(idPart)
	if err != nil {
		return 0, 0, err
	}
	field, err := member.ParseField(key)
	if err != nil {
		return 0, 0, err
	}
	return target, field, nil
}

// ParseTarget parses a member id typed by the admin.
func ParseTarget(text string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTarget, text)
	}
	return id, nil
}
