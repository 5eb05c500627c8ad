package message

import "time"

// Message is a direct message between two users. Each party owns an
// independent delete flag; the record is destroyed only once both are set.
type Message struct {
	ID               int64      `db:"id"`
	SenderID         int64      `db:"sender_id"`
	RecipientID      int64      `db:"recipient_id"`
	Content          string     `db:"content"`
	IsRead           bool       `db:"is_read"`
	DateRead         *time.Time `db:"date_read"`
	MessageSent      time.Time  `db:"message_sent"`
	SenderDeleted    bool       `db:"sender_deleted"`
	RecipientDeleted bool       `db:"recipient_deleted"`
}

// Container selects which mailbox view a paged message query returns.
type Container string

const (
	ContainerInbox  Container = "Inbox"
	ContainerOutbox Container = "Outbox"
	ContainerUnread Container = "Unread"
)
