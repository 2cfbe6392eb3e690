package chat

import "time"

// Sender values of a displayed message.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// Message is one entry of the displayed transcript. Pending marks the
// placeholder shown while a reply is being generated.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Pending   bool      `json:"pending,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Role of a turn in the history sent to the model.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one exchange half replayed to the model. Only successful
// exchanges are recorded.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}
