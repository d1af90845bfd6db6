package models

import "time"

// CacheEntry is a persisted ResultCache slot. Payload holds the JSON encoded
// value; StoredAt is compared against the namespace's duration on read.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;column:cache_key;size:512" json:"key"`
	Namespace string    `gorm:"not null;index;size:32" json:"namespace"`
	Payload   []byte    `gorm:"not null" json:"payload"`
	StoredAt  time.Time `gorm:"not null;index" json:"stored_at"`
}

func (CacheEntry) TableName() string {
	return "cache_entries"
}
