package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAttemptRecord_CloneIsDeep(t *testing.T) {
	exp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	orig := &AttemptRecord{ClientID: "1.2.3.4", Attempts: 3, Locked: true, LockExpiry: &exp}

	c := orig.Clone()
	*c.LockExpiry = c.LockExpiry.Add(time.Hour)
	c.Attempts = 0

	assert.Equal(t, exp, *orig.LockExpiry)
	assert.Equal(t, 3, orig.Attempts)
	assert.Nil(t, c.LastAttempt)

	var nilRec *AttemptRecord
	assert.Nil(t, nilRec.Clone())
}
