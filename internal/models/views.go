package models

import "time"

type FriendRequestView struct {
	ID        int64        `json:"id"`
	Sender    PublicUser   `json:"sender"`
	Receiver  PublicUser   `json:"receiver"`
	Status    FriendStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
}

func (r FriendRequest) View() FriendRequestView {
	return FriendRequestView{
		ID:        r.ID,
		Sender:    r.Sender,
		Receiver:  r.Receiver,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	}
}

// MessageView is the shape pushed to live sessions and returned by history.
type MessageView struct {
	ID        int64      `json:"id"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Sender    PublicUser `json:"sender"`
	Recipient PublicUser `json:"recipient"`
}
