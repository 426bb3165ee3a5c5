package store

import (
	"time"
)

// EventRecord is one committed conduit event. Amounts are decimal strings since they
// range over uint256.
type EventRecord struct {
	Id        string    `gorm:"primaryKey;type:varchar(36);not null"`
	Seq       uint64    `gorm:"type:bigint(20);not null;index"`
	Conduit   string    `gorm:"type:varchar(48);not null;index"`
	Kind      string    `gorm:"type:varchar(24);not null"`
	Caller    string    `gorm:"type:varchar(48);not null"`
	Target    string    `gorm:"type:varchar(48);not null"`
	Pool      string    `gorm:"type:varchar(48);not null"`
	Token     string    `gorm:"type:varchar(48);not null"`
	Param     string    `gorm:"type:varchar(24);not null"`
	Amount    string    `gorm:"type:varchar(80);not null"`
	Wad       string    `gorm:"type:varchar(80);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// SnapshotRecord is the latest persisted state of a conduit.
type SnapshotRecord struct {
	Conduit   string    `gorm:"primaryKey;type:varchar(48);not null"`
	Schema    string    `gorm:"type:varchar(24);not null"`
	State     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
