package messaging

import "context"

const (
	// QueueDestination is the per-user queue inbound chat messages arrive on
	QueueDestination = "/user/queue/messages"
	// SendDestination is where outbound chat messages are published
	SendDestination = "/app/chat.sendMessage"
)

// Dialer opens an authenticated broker connection
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// Conn is an established broker connection
type Conn interface {
	Subscribe(destination string) (Subscription, error)
	Send(destination string, body []byte, headers map[string]string) error
	Close() error
}

// Subscription yields message bodies until the subscription or connection ends.
// Next returns io.EOF after a normal end.
type Subscription interface {
	Next() ([]byte, error)
	Unsubscribe() error
}

// TokenSource provides the current bearer token, "" when logged out
type TokenSource interface {
	Token() string
}
