// Package services implements the habit engine: the logging rules, the streak
// updater, the decay sweep and the reminder dispatch, plus the CRUD that has
// to respect the same ownership and goal invariants.
package services

import (
	"errors"
	"fmt"
)

// RejectionCode identifies a business-rule rejection.
type RejectionCode string

const (
	CodeNotOwner                RejectionCode = "not_owner"
	CodeAlreadyLoggedThisPeriod RejectionCode = "already_logged_this_period"
	CodeUnknownHabit            RejectionCode = "unknown_habit"
	CodeUnknownGoal             RejectionCode = "unknown_goal"
	CodeUnknownReminder         RejectionCode = "unknown_reminder"
	CodeDuplicateInProgressGoal RejectionCode = "duplicate_in_progress_goal"
	CodeDuplicateReminder       RejectionCode = "duplicate_reminder"
	CodeGoalClosed              RejectionCode = "goal_closed"
	CodeInvalidInput            RejectionCode = "invalid_input"
)

// Rejection is a deterministic refusal caused by the caller's input or the
// current state. It is reported to the client and is never a server fault.
type Rejection struct {
	Code    RejectionCode
	Field   string
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

func reject(code RejectionCode, field, msg string) *Rejection {
	return &Rejection{Code: code, Field: field, Message: msg}
}

// AsRejection unwraps err into a *Rejection when it is one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// IsRejection reports whether err carries the given rejection code.
func IsRejection(err error, code RejectionCode) bool {
	r, ok := AsRejection(err)
	return ok && r.Code == code
}

var (
	errNotOwnerHabit     = reject(CodeNotOwner, "habit", "You can only act on your own habits.")
	errUnknownHabit      = reject(CodeUnknownHabit, "habit", "Habit not found.")
	errUnknownGoal       = reject(CodeUnknownGoal, "goal", "Goal not found.")
	errUnknownReminder   = reject(CodeUnknownReminder, "reminder", "Reminder not found.")
	errDuplicateGoal     = reject(CodeDuplicateInProgressGoal, "habit", "An in-progress goal already exists for this habit.")
	errDuplicateReminder = reject(CodeDuplicateReminder, "habit", "A reminder already exists for this habit.")
	errGoalClosed        = reject(CodeGoalClosed, "goal", "Completed goals cannot be changed.")
)

// errStaleGoal signals a lost compare-and-set on a goal row; it is retried and
// never leaves the package.
var errStaleGoal = errors.New("goal changed concurrently")
