package realtime

import "encoding/json"

type FrameType string

const (
	FrameConnect     FrameType = "connect"
	FrameSubscribe   FrameType = "subscribe"
	FrameUnsubscribe FrameType = "unsubscribe"
	FrameSend        FrameType = "send"
	FrameDisconnect  FrameType = "disconnect"

	FrameConnected FrameType = "connected"
	FrameMessage   FrameType = "message"
	FrameReceipt   FrameType = "receipt"
	FrameError     FrameType = "error"
)

const (
	// UserQueuePrivate is what clients subscribe to; it resolves to the
	// caller's own /user/{username}/queue/private.
	UserQueuePrivate = "/user/queue/private"
	AppChatSend      = "/app/chat.send"

	HeaderAuthorization = "Authorization"
	HeaderAuthenticated = "authenticated"
	HeaderUserName      = "user-name"
	HeaderMessage       = "message"
	HeaderReceipt       = "receipt"
	HeaderReceiptID     = "receipt-id"
	HeaderSessionID     = "session"
)

// Frame is the JSON envelope exchanged over the socket in both directions.
type Frame struct {
	Type        FrameType         `json:"type"`
	Headers     map[string]string `json:"headers,omitempty"`
	Destination string            `json:"destination,omitempty"`
	Body        json.RawMessage   `json:"body,omitempty"`
}

func (f Frame) Header(name string) string {
	if f.Headers == nil {
		return ""
	}
	return f.Headers[name]
}

// ChatMessageRequest is the body of a send to /app/chat.send.
type ChatMessageRequest struct {
	RecipientID int64  `json:"recipientId"`
	Content     string `json:"content"`
}

func errorFrame(message string) Frame {
	return Frame{Type: FrameError, Headers: map[string]string{HeaderMessage: message}}
}

func messageFrame(destination string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: FrameMessage, Destination: destination, Body: body})
}
