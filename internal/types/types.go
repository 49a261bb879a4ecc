package types

import (
	"time"
)

type User struct {
	Id           string    `json:"id"`
	FullName     string    `json:"full_name"`
	College      string    `json:"college,omitempty"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Event struct {
	Id         int       `json:"id"`
	ExternalId string    `json:"external_id"`
	Title      string    `json:"title"`
	OwnerId    string    `json:"owner_id"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

type Message struct {
	Id         string    `json:"id"`
	EventId    string    `json:"event_id,omitempty"`
	UserId     string    `json:"user_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	Mentions   []string  `json:"mentions,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type TypingUser struct {
	UserId   string `json:"user_id"`
	FullName string `json:"full_name"`
}

type Connection struct {
	Id          string    `json:"id"`
	RequesterId string    `json:"requester_id"`
	ReceiverId  string    `json:"receiver_id"`
	Status      string    `json:"status"`
	Requester   User      `json:"requester"`
	Receiver    User      `json:"receiver"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}
