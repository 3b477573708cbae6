package models

import (
	"time"
)

// StateEntry is a persisted key-value pair. ExpiresAt is a unix millisecond
// deadline; nil means the entry never expires. Expired rows are filtered on
// read and reclaimed by the background sweep.
type StateEntry struct {
	Key   string `gorm:"primaryKey;type:varchar(255)"`
	Value []byte `gorm:"type:blob"`

	ExpiresAt *int64 `gorm:"index"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Session tracks one server run for diagnostics.
type Session struct {
	ID string `gorm:"primaryKey;type:varchar(40)"`

	ServerName string `gorm:"type:varchar(100)"`
	Transport  string `gorm:"type:varchar(20)"`

	StartedAt time.Time `gorm:"autoCreateTime"`
	StoppedAt *time.Time
}
