// Package member persists one record per Telegram user and answers the queries
// the onboarding, review and broadcast flows need.
package member

import (
	"fmt"
	"strings"
	"time"
)

// Status is the explicit onboarding state stored with every record.
type Status string

const (
	// StatusUnverified is a user who has not passed the captcha yet.
	StatusUnverified Status = "unverified"
	// StatusAwaitingReview is a user who passed the captcha and waits for the admin.
	StatusAwaitingReview Status = "awaiting_review"
	// StatusApproved is a full member.
	StatusApproved Status = "approved"
	// StatusRejected is a user the admin declined.
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnverified, StatusAwaitingReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

const (
	// DefaultCountry is stored when no region label is configured.
	DefaultCountry = "Not Set"
	// WalletUnset is the sentinel stored until the admin sets a wallet address.
	WalletUnset = "Not Set"
)

// Record is the stored member row.
type Record struct {
	ID              int64     `db:"user_id"`
	Username        string    `db:"username"`
	Name            string    `db:"name"`
	JoinedAt        time.Time `db:"joined_at"`
	UpdatedAt       time.Time `db:"updated_at"`
	Country         string    `db:"country"`
	Status          Status    `db:"status"`
	TotalAllocation string    `db:"total_allocation"`
	TotalInvestment string    `db:"total_investment"`
	TotalPayout     string    `db:"total_payout"`
	Wallet          string    `db:"wallet"`
}

// Approved reports whether the member has been approved by the admin.
func (r Record) Approved() bool {
	return r.Status == StatusApproved
}

// Profile carries the mutable identity fields refreshed on every contact.
type Profile struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// DisplayName joins first and last name the way Telegram shows them.
func (p Profile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Stats are the three member counts; Approved + Pending == Total.
type Stats struct {
	Total    int `db:"total"`
	Approved int `db:"approved"`
	Pending  int `db:"pending"`
}

// ApprovalRate returns the approved share in percent; ok is false with no members.
func (s Stats) ApprovalRate() (float64, bool) {
	if s.Total <= 0 {
		return 0, false
	}
	return float64(s.Approved) / float64(s.Total) * 100, true
}

// Field enumerates the columns the admin may edit.
type Field int

const (
	FieldApproval Field = iota + 1
	FieldTotalAllocation
	FieldTotalInvestment
	FieldTotalPayout
	FieldWallet
)

type fieldSpec struct {
	key    string
	label  string
	column string
}

var fieldSpecs = map[Field]fieldSpec{
	FieldApproval:        {key: "approval", label: "Approval Status", column: "status"},
	FieldTotalAllocation: {key: "total_allocation", label: "Total Allocation", column: "total_allocation"},
	FieldTotalInvestment: {key: "total_investment", label: "Total Investment", column: "total_investment"},
	FieldTotalPayout:     {key: "total_payout", label: "Total Payout", column: "total_payout"},
	FieldWallet:          {key: "wallet", label: "Wallet Address", column: "wallet"},
}

// Fields lists the editable fields in display order.
func Fields() []Field {
	return []Field{FieldTotalAllocation, FieldTotalInvestment, FieldTotalPayout, FieldWallet, FieldApproval}
}

// ParseField maps a field key (as carried in callback payloads) to a Field.
func ParseField(key string) (Field, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	for f, spec := range fieldSpecs {
		if spec.key == key {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, key)
}

// Key returns the stable identifier used in callbacks and logs.
func (f Field) Key() string {
	return fieldSpecs[f].key
}

// Label returns the human readable field name.
func (f Field) Label() string {
	return fieldSpecs[f].label
}

func (f Field) String() string {
	if spec, ok := fieldSpecs[f]; ok {
		return spec.key
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// ParseApproval interprets an admin supplied approval value.
func ParseApproval(value string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "approved", "approve":
		return StatusApproved, nil
	case "0", "false", "no", "n", "rejected", "reject":
		return StatusRejected, nil
	}
	return "", fmt.Errorf("%w: approval expects yes/no, got %q", ErrInvalidValue, value)
}
