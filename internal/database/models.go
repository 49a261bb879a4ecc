package database

import "time"

const (
	ConnectionStatusPending  = "pending"
	ConnectionStatusAccepted = "accepted"
)

type Profile struct {
	Id           string
	FullName     string
	College      string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Event struct {
	Id         int
	ExternalId string
	Title      string
	OwnerId    string
	CreatedAt  time.Time
}

type EventMessage struct {
	Id        string    `json:"id"`
	EventId   int       `json:"event_id"`
	UserId    string    `json:"user_id"`
	Content   string    `json:"content"`
	Mentions  []string  `json:"mentions,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CommunityMessage struct {
	Id        string    `json:"id"`
	UserId    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type TypingIndicator struct {
	EventId     int       `json:"event_id"`
	UserId      string    `json:"user_id"`
	LastTypedAt time.Time `json:"last_typed_at"`
}

type Connection struct {
	Id          string    `json:"id"`
	RequesterId string    `json:"requester_id"`
	ReceiverId  string    `json:"receiver_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateAccountParams struct {
	FullName     string
	College      string
	EmailAddress string
	PasswordHash string
}

type CreateEventParams struct {
	Title      string `json:"title"`
	OwnerId    string `json:"-"`
	ExternalId string `json:"external_id"`
}

type CreateEventMessageParams struct {
	EventId  int
	UserId   string
	Content  string
	Mentions []string
}

type CreateCommunityMessageParams struct {
	UserId  string
	Content string
}
