package mail

import "context"

// Message is one outbound notification email. Threading headers are
// optional; a message with only MessageID starts a new thread.
type Message struct {
	From       string
	To         []string
	Cc         []string
	Subject    string
	HTMLBody   string
	MessageID  string
	InReplyTo  string
	References string
}

// Transport delivers a composed message. Implementations make exactly
// one attempt; retry policy belongs to the caller, and the dispatcher
// deliberately has none.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}
