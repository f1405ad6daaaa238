// Package lockout implements the failed-attempt policy: a pure decision over
// an AttemptRecord plus the state transitions callers persist afterwards.
// Nothing in here touches storage.
package lockout

import (
	"time"

	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

const (
	DefaultMaxAttempts     = 3
	DefaultLockoutDuration = 24 * time.Hour
)

// Policy holds the limits. The zero value is not usable; see DefaultPolicy.
type Policy struct {
	MaxAttempts     int
	LockoutDuration time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, LockoutDuration: DefaultLockoutDuration}
}

// Decision is the outcome of Decide.
type Decision struct {
	Allowed           bool
	Locked            bool
	RemainingAttempts int
	TimeRemaining     time.Duration

	// ShouldLock asks the caller to persist a lock ending at LockExpiry.
	ShouldLock bool
	LockExpiry time.Time

	// Expired reports that a stored lock has run out and the record is due
	// for a reset.
	Expired bool
}

// Decide computes whether a client may attempt a verification now.
// rec may be nil, which means no failures on record.
func (p Policy) Decide(rec *models.AttemptRecord, now time.Time) Decision {
	if rec != nil && rec.Locked {
		if rec.LockExpiry != nil && now.Before(*rec.LockExpiry) {
			return Decision{
				Allowed:       false,
				Locked:        true,
				TimeRemaining: rec.LockExpiry.Sub(now),
				LockExpiry:    *rec.LockExpiry,
			}
		}
		return Decision{
			Allowed:           true,
			RemainingAttempts: p.MaxAttempts,
			Expired:           true,
		}
	}

	attempts := 0
	if rec != nil {
		attempts = rec.Attempts
	}

	remaining := p.MaxAttempts - attempts
	if remaining <= 0 {
		expiry := now.Add(p.LockoutDuration)
		return Decision{
			Allowed:       false,
			Locked:        true,
			ShouldLock:    true,
			LockExpiry:    expiry,
			TimeRemaining: p.LockoutDuration,
		}
	}

	return Decision{Allowed: true, RemainingAttempts: remaining}
}

// ApplyDecision returns the record the caller should persist after Decide.
// An expired lock becomes a fresh record, a pending lock is set, anything
// else is returned unchanged. rec may be nil.
func (p Policy) ApplyDecision(clientID string, rec *models.AttemptRecord, d Decision) models.AttemptRecord {
	switch {
	case d.Expired:
		return Reset(clientID)
	case d.ShouldLock:
		next := current(clientID, rec)
		expiry := d.LockExpiry
		next.Locked = true
		next.LockExpiry = &expiry
		if next.Attempts < p.MaxAttempts {
			next.Attempts = p.MaxAttempts
		}
		return next
	default:
		return current(clientID, rec)
	}
}

// RecordFailure counts one failed verification at now. The lock is set as
// soon as the count reaches MaxAttempts, so the response to the last allowed
// attempt already reports it.
func (p Policy) RecordFailure(rec models.AttemptRecord, now time.Time) models.AttemptRecord {
	at := now
	rec.Attempts++
	rec.LastAttempt = &at

	if rec.Attempts >= p.MaxAttempts {
		expiry := now.Add(p.LockoutDuration)
		rec.Locked = true
		rec.LockExpiry = &expiry
	}
	return rec
}

// Remaining reports attempts left for rec, never below zero.
func (p Policy) Remaining(rec *models.AttemptRecord) int {
	if rec == nil {
		return p.MaxAttempts
	}
	if rec.Locked {
		return 0
	}
	if n := p.MaxAttempts - rec.Attempts; n > 0 {
		return n
	}
	return 0
}

// Reset is the record after a successful verification or a lapsed lock.
func Reset(clientID string) models.AttemptRecord {
	return models.AttemptRecord{ClientID: clientID}
}

func current(clientID string, rec *models.AttemptRecord) models.AttemptRecord {
	if rec == nil {
		return Reset(clientID)
	}
	c := rec.Clone()
	c.ClientID = clientID
	return *c
}
