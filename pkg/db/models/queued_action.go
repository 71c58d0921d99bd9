package models

import (
	"encoding/json"
	"time"

	"github.com/mathias-bellec/MkulimaLink-sub002/pkg/enums"
)

// QueuedAction records a mutation taken while the device was offline,
// awaiting replay against the server. Rows live in the agent's sqlite store;
// the autoincrement ID gives each action a unique identity and FIFO order.
// ClientRef is minted once at enqueue time and sent as the Idempotency-Key
// on every replay attempt, so the server deduplicates retries of the same
// action across devices.
type QueuedAction struct {
	ID         uint64           `gorm:"column:id;primaryKey;autoIncrement"`
	ClientRef  string           `gorm:"column:client_ref;type:text;not null;uniqueIndex"`
	ActionType enums.ActionType `gorm:"column:action_type;type:text;not null"`
	Payload    json.RawMessage  `gorm:"column:payload;not null"`
	EnqueuedAt time.Time        `gorm:"column:enqueued_at;autoCreateTime"`
}

func (QueuedAction) TableName() string {
	return "queued_actions"
}
