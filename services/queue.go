package services

import (
	"fmt"
	"log"
	"sort"
	"time"

	"farm_prospector/config"
	"farm_prospector/models"
	"farm_prospector/storage"
)

// QueueService drives the call queue state machine: recording outcomes,
// reactivating expired rows and assembling the day's call list.
type QueueService struct {
	store *storage.SQLiteStore
	cfg   config.QueueConfig
}

func NewQueueService(store *storage.SQLiteStore, cfg config.QueueConfig) *QueueService {
	return &QueueService{store: store, cfg: cfg}
}

// Transition computes the post-outcome queue state at time now.
// Inconclusive outcomes snooze, connected/not_interested start the long
// cooldown, everything else parks the row as done with no timer.
func (s *QueueService) Transition(outcome models.Outcome, now time.Time) storage.QueueTransition {
	switch outcome {
	case models.OutcomeLeftMessage:
		until := now.AddDate(0, 0, s.cfg.SnoozeLeftMessageDays)
		return storage.QueueTransition{Status: models.QueueStatusSnoozed, SnoozeUntil: &until}
	case models.OutcomeNoAnswer:
		until := now.AddDate(0, 0, s.cfg.SnoozeNoAnswerDays)
		return storage.QueueTransition{Status: models.QueueStatusSnoozed, SnoozeUntil: &until}
	case models.OutcomeConnected, models.OutcomeNotInterested:
		until := now.AddDate(0, 0, s.cfg.CooldownDays)
		return storage.QueueTransition{Status: models.QueueStatusDone, CooldownUntil: &until}
	default:
		return storage.QueueTransition{Status: models.QueueStatusDone}
	}
}

// RecordOutcome validates and applies one call outcome. The call-log
// append and queue transition commit atomically; a do_not_call outcome
// additionally flags the contact record.
func (s *QueueService) RecordOutcome(contactID string, outcome models.Outcome, notes string) (bool, error) {
	return s.RecordOutcomeAt(contactID, outcome, notes, time.Now())
}

func (s *QueueService) RecordOutcomeAt(contactID string, outcome models.Outcome, notes string, calledAt time.Time) (bool, error) {
	if !models.KnownOutcome(outcome) {
		return false, fmt.Errorf("unknown outcome %q", outcome)
	}

	entry := &models.CallLogEntry{
		ContactID: contactID,
		CalledAt:  calledAt,
		Outcome:   outcome,
		Notes:     notes,
	}
	tr := s.Transition(outcome, calledAt)
	applied, err := s.store.ApplyOutcome(entry, tr, outcome == models.OutcomeDoNotCall)
	if err != nil {
		return false, fmt.Errorf("recording outcome for %s: %w", contactID, err)
	}
	return applied, nil
}

// Reactivate runs the sweep flipping expired done and snoozed rows back
// to active.
func (s *QueueService) Reactivate() (int64, error) {
	return s.ReactivateAt(time.Now())
}

func (s *QueueService) ReactivateAt(now time.Time) (int64, error) {
	n, err := s.store.ReactivateExpired(now)
	if err != nil {
		return 0, fmt.Errorf("reactivating queue rows: %w", err)
	}
	if n > 0 {
		log.Printf("Reactivated %d queue entries", n)
	}
	return n, nil
}

// TodayList returns up to limit callable contacts. Anyone appearing in a
// recent event's top-contacts snapshot is boosted to the front; within
// each group the store's ordering (propensity, staleness, insertion)
// holds.
func (s *QueueService) TodayList(limit int) ([]models.QueueContact, error) {
	return s.TodayListAt(time.Now(), limit)
}

func (s *QueueService) TodayListAt(now time.Time, limit int) ([]models.QueueContact, error) {
	// Boost ordering must see every eligible row before the limit is
	// applied, so the store returns the whole list.
	list, err := s.store.SelectCallList(now)
	if err != nil {
		return nil, fmt.Errorf("selecting call list: %w", err)
	}

	boostSince := now.AddDate(0, 0, -s.cfg.EventBoostWindowDays)
	boosted, err := s.store.RecentEventContactIDs(boostSince)
	if err != nil {
		return nil, fmt.Errorf("loading event snapshots: %w", err)
	}

	for i := range list {
		list[i].EventBoost = boosted[list[i].ContactID]
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].EventBoost && !list[j].EventBoost
	})

	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// TopUp admits up to want fresh contacts into the queue, drawn from the
// farm pool by propensity. Contacts already active/snoozed or cooling
// down are skipped; done rows without a live cooldown get reactivated
// instead of re-inserted.
func (s *QueueService) TopUp(suburbs []string, want int) (int, error) {
	return s.TopUpAt(suburbs, want, time.Now())
}

func (s *QueueService) TopUpAt(suburbs []string, want int, now time.Time) (int, error) {
	if want <= 0 {
		return 0, nil
	}

	blocked, err := s.store.BlockedContactIDs(now)
	if err != nil {
		return 0, fmt.Errorf("loading blocked contacts: %w", err)
	}

	candidates, err := s.store.ListFarmContacts(suburbs)
	if err != nil {
		return 0, fmt.Errorf("listing candidates: %w", err)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].PropensityScore > candidates[j].PropensityScore
	})

	added := 0
	for i := range candidates {
		if added >= want {
			break
		}
		c := &candidates[i]
		if blocked[c.ID] || !c.Callable() {
			continue
		}

		inserted, err := s.store.Enqueue(c, "", now)
		if err != nil {
			return added, fmt.Errorf("enqueueing %s: %w", c.ID, err)
		}
		if !inserted {
			// an old done row without a cooldown; bring it back
			inserted, err = s.store.ReactivateContact(c.ID, now)
			if err != nil {
				return added, fmt.Errorf("reactivating %s: %w", c.ID, err)
			}
		}
		if inserted {
			added++
		}
	}
	return added, nil
}
