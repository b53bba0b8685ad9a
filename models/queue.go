package models

import "time"

type QueueStatus string

const (
	QueueStatusActive  QueueStatus = "active"
	QueueStatusSnoozed QueueStatus = "snoozed"
	QueueStatusDone    QueueStatus = "done"
)

type Outcome string

const (
	OutcomeLeftMessage       Outcome = "left_message"
	OutcomeNoAnswer          Outcome = "no_answer"
	OutcomeConnected         Outcome = "connected"
	OutcomeCallbackRequested Outcome = "callback_requested"
	OutcomeAppraisalBooked   Outcome = "appraisal_booked"
	OutcomeNotInterested     Outcome = "not_interested"
	OutcomeWrongNumber       Outcome = "wrong_number"
	OutcomeDisconnected      Outcome = "disconnected"
	OutcomeDoNotCall         Outcome = "do_not_call"
)

// KnownOutcome reports whether the outcome string is one this system
// understands. Unknown outcomes are rejected at the API boundary.
func KnownOutcome(o Outcome) bool {
	switch o {
	case OutcomeLeftMessage, OutcomeNoAnswer, OutcomeConnected,
		OutcomeCallbackRequested, OutcomeAppraisalBooked, OutcomeNotInterested,
		OutcomeWrongNumber, OutcomeDisconnected, OutcomeDoNotCall:
		return true
	}
	return false
}

// CallQueueEntry is the one-row-per-contact call lifecycle state.
// snooze_until is set only while snoozed, cooldown_until only while done
// with a cooldown; both are cleared whenever the row returns to active.
type CallQueueEntry struct {
	ContactID       string      `json:"contact_id" db:"contact_id"`
	Status          QueueStatus `json:"status" db:"status"`
	AddedAt         time.Time   `json:"added_at" db:"added_at"`
	SnoozeUntil     *time.Time  `json:"snooze_until" db:"snooze_until"`
	CooldownUntil   *time.Time  `json:"cooldown_until" db:"cooldown_until"`
	LastOutcome     Outcome     `json:"last_outcome" db:"last_outcome"`
	LastCalledAt    *time.Time  `json:"last_called_at" db:"last_called_at"`
	PropensityScore int         `json:"propensity_score" db:"propensity_score"`
	Intel           string      `json:"intel" db:"intel"`
}

// QueueContact is a queue row joined with contact attributes, as served by
// the "today's call list" query.
type QueueContact struct {
	CallQueueEntry
	Name       string `json:"name" db:"name"`
	Phone      string `json:"phone" db:"phone"`
	Address    string `json:"address" db:"address"`
	Suburb     string `json:"suburb" db:"suburb"`
	EventBoost bool   `json:"event_boost" db:"event_boost"`
}
