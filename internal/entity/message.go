package entity

// MessageKind labels a notification mail.
type MessageKind string

const (
	MessageSlots     MessageKind = "slots"
	MessageFailure   MessageKind = "failure"
	MessageHeartbeat MessageKind = "heartbeat"
)

// Message is a plain-text notification mail.
type Message struct {
	Kind    MessageKind
	Subject string
	Body    string
}
