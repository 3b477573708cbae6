package models

import (
	"testing"
	"time"
)

func TestStateEntry_Deadline(t *testing.T) {
	entry := StateEntry{Key: "k", Value: []byte("v")}
	if entry.ExpiresAt != nil {
		t.Error("entries default to no expiry")
	}

	deadline := time.Now().Add(time.Second).UnixMilli()
	entry.ExpiresAt = &deadline
	if *entry.ExpiresAt <= time.Now().UnixMilli() {
		t.Error("future deadline should be ahead of now")
	}
}

func TestSession_Zero(t *testing.T) {
	session := Session{ID: "ses_test"}
	if session.StoppedAt != nil {
		t.Error("sessions start without a stop time")
	}
}
