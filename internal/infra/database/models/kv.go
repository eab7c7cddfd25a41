package models

import (
	"time"
)

// Dataset holds the lifetime of one registry's entries.
type Dataset struct {
	Name      string     `json:"name" gorm:"primaryKey;type:text"`
	ExpiresAt *time.Time `json:"expiresAt" gorm:"type:timestamp with time zone"`
	CDate     time.Time  `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type Entry struct {
	Dataset string    `json:"dataset" gorm:"primaryKey;type:text"`
	Key     string    `json:"key" gorm:"primaryKey;type:text"`
	Value   []byte    `json:"value" gorm:"type:bytea;not null"`
	MDate   time.Time `json:"mdate" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}
