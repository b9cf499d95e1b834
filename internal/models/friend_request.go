package models

import "time"

type FriendStatus string

const (
	FriendStatusPending  FriendStatus = "PENDING"
	FriendStatusAccepted FriendStatus = "ACCEPTED"
	FriendStatusDeclined FriendStatus = "DECLINED"
)

// IsResponse reports whether a receiver may move a pending request to s.
func (s FriendStatus) IsResponse() bool {
	return s == FriendStatusAccepted || s == FriendStatusDeclined
}

// FriendRequest is a directed edge sender -> receiver. Sender and Receiver
// are filled by list queries; single-row lookups leave them zero.
type FriendRequest struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Status     FriendStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Sender     PublicUser
	Receiver   PublicUser
}

// PairKey orders the two user ids so that both directions of an edge share
// one key.
func PairKey(a, b int64) (low, high int64) {
	if a < b {
		return a, b
	}
	return b, a
}
