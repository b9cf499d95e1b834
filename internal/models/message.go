package models

import "time"

const MaxMessageLength = 1000

// Message holds plaintext content; repositories persist whatever the
// service hands them, which is the encrypted form.
type Message struct {
	ID          int64
	SenderID    int64
	RecipientID int64
	Content     string
	CreatedAt   time.Time
}
