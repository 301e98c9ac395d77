package types

import "time"

const (
	ChatRoleUser  = "user"
	ChatRoleModel = "model"
)

// ChatMessage is one turn of an Oracle session. Sessions are ephemeral and
// never persisted; this is not a database model.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
