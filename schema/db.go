package schema

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// observable event types
	EventWillCreated     = "WillCreated"
	EventWillCleared     = "WillCleared"
	EventConfigured      = "Configured"
	EventPing            = "Ping"
	EventEmptied         = "Emptied"
	EventExecuted        = "Executed"
	EventCancelled       = "Cancelled"
	EventFeesWithdrawn   = "FeesWithdrawn"
	EventExecutorUpdated = "ExecutorUpdated"
	EventFeeUpdated      = "FeeUpdated"
)

// WillRecord mirrors one will for off-chain style indexing; the live state
// machine is authoritative, records are upserted after every mutation.
type WillRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	WillAddr string `gorm:"uniqueIndex:idx_will" json:"willAddr"`
	Owner    string `gorm:"index:idx_owner" json:"owner"`
	State    string `json:"state"`
	Diary    bool   `json:"diary"`

	Interval     int64  `json:"interval"`
	LastActivity int64  `json:"lastActivity"`
	GraceEnd     int64  `json:"graceEnd"`
	ExecutorAddr string `json:"executorAddr"`
	FeeBps       int64  `json:"feeBps"`

	Heirs       datatypes.JSON `json:"heirs"`       // json.marshal([]string)
	Percentages datatypes.JSON `json:"percentages"` // json.marshal([]int)
	Tokens      datatypes.JSON `json:"tokens"`      // json.marshal([]string)
	NFTs        datatypes.JSON `json:"nfts"`        // json.marshal([]NFTGrant)
}

// WillEvent is one observable event row; also published to kafka when enabled.
type WillEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	EventId   string `gorm:"uniqueIndex:idx_event" json:"eventId"` // uuid
	EventType string `gorm:"index:idx_type" json:"eventType"`
	Owner     string `gorm:"index:idx_ev_owner" json:"owner"`
	WillAddr  string `json:"willAddr"`
	Caller    string `json:"caller"`

	FeeAmount    string `json:"feeAmount"` // native fee charged, minor unit
	FeeRecipient string `json:"feeRecipient"`

	Body datatypes.JSON `json:"body"` // event specific payload
}

// payloads carried in WillEvent.Body, keyed by EventType
type WillCreatedBody struct {
	HasDeferredMode bool `json:"hasDeferredMode"`
}

type PingBody struct {
	NewTimestamp int64 `json:"newTimestamp"`
}

type FeesWithdrawnBody struct {
	Recipients []string `json:"recipients"`
	Amounts    []string `json:"amounts"`
}

type WillStatistic struct {
	ID       uint      `gorm:"primarykey"`
	Date     time.Time `gorm:"uniqueIndex:idx_date" json:"date"`
	Created  int64     `json:"created"`
	Executed int64     `json:"executed"`
	Canceled int64     `json:"canceled"`
	Active   int64     `json:"active"`
}
