package domain

import "time"

// Message content bounds, in characters.
const (
	MinMessageLength = 1
	MaxMessageLength = 300
)

// Message is an anonymous message embedded in its recipient's record.
type Message struct {
	ID        string    `db:"id" json:"_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
