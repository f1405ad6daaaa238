// Package models defines the server-side data models shared by the
// repositories, services and transports.
package models

import "time"

// AttemptRecord is the failed-attempt state of one client identifier
// (normally an IP address). An absent record means zero attempts and no lock.
//
// Invariant: Locked implies LockExpiry != nil.
type AttemptRecord struct {
	ClientID    string     `json:"clientId"`
	Attempts    int        `json:"attempts"`
	Locked      bool       `json:"locked"`
	LockExpiry  *time.Time `json:"lockExpiry,omitempty"`
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`
}

// Clone returns a deep copy so callers may mutate the result freely.
func (r *AttemptRecord) Clone() *AttemptRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.LockExpiry != nil {
		t := *r.LockExpiry
		c.LockExpiry = &t
	}
	if r.LastAttempt != nil {
		t := *r.LastAttempt
		c.LastAttempt = &t
	}
	return &c
}
