package model

import (
	"slices"
	"time"
)

// ClosingStatus is the lifecycle state of a period.
type ClosingStatus string

// Closing statuses.
const (
	ClosingInProgress ClosingStatus = "IN_PROGRESS"
	ClosingClosed     ClosingStatus = "CLOSED"
)

// ChecklistFlag names one fixed closing milestone.
type ChecklistFlag string

// Checklist flags in milestone order.
const (
	FlagMovementImported    ChecklistFlag = "movementImported"
	FlagInvoicesImported    ChecklistFlag = "invoicesImported"
	FlagReconciled          ChecklistFlag = "reconciled"
	FlagDivergencesResolved ChecklistFlag = "divergencesResolved"
	FlagCommissionComputed  ChecklistFlag = "commissionComputed"
	FlagValidated           ChecklistFlag = "validated"
)

// ChecklistFlags lists every flag in milestone order.
var ChecklistFlags = []ChecklistFlag{
	FlagMovementImported,
	FlagInvoicesImported,
	FlagReconciled,
	FlagDivergencesResolved,
	FlagCommissionComputed,
	FlagValidated,
}

// IsValidFlag reports whether the flag belongs to the fixed checklist.
func IsValidFlag(flag ChecklistFlag) bool {
	return slices.Contains(ChecklistFlags, flag)
}

// TimelineEventKind classifies closing timeline events.
type TimelineEventKind string

// Timeline event kinds.
const (
	EventMilestone TimelineEventKind = "MILESTONE"
	EventClose     TimelineEventKind = "CLOSE"
	EventReopen    TimelineEventKind = "REOPEN"
)

// TimelineEvent is one append-only entry in a period's closing history.
type TimelineEvent struct {
	At      time.Time         `json:"at"`
	ID      string            `json:"id"`
	Kind    TimelineEventKind `json:"kind"`
	Flag    ChecklistFlag     `json:"flag,omitempty"`
	Message string            `json:"message"`
}

// ClosingState tracks the closing checklist and status of one period.
type ClosingState struct {
	UpdatedAt           time.Time
	Checklist           map[ChecklistFlag]bool
	ConsolidatedSummary *ConsolidatedSummary
	Period              PeriodID
	Status              ClosingStatus
	Timeline            []TimelineEvent
}

// NewClosingState returns the lazily created initial state for a period.
func NewClosingState(period PeriodID) *ClosingState {
	checklist := make(map[ChecklistFlag]bool, len(ChecklistFlags))
	for _, f := range ChecklistFlags {
		checklist[f] = false
	}
	return &ClosingState{
		Period:    period,
		Status:    ClosingInProgress,
		Checklist: checklist,
	}
}

// IsClosed reports whether the period is frozen.
func (s *ClosingState) IsClosed() bool {
	return s.Status == ClosingClosed
}

// CheckStatus is the outcome of one pre-close check.
type CheckStatus string

// Pre-close check outcomes. Only BLOCKED prevents closing.
const (
	CheckOK      CheckStatus = "OK"
	CheckWarning CheckStatus = "WARNING"
	CheckBlocked CheckStatus = "BLOCKED"
)

// CheckItem is one line of the pre-close checklist.
type CheckItem struct {
	Status  CheckStatus
	Message string
}
