package database

import "time"

type HackChatRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (Profile, error)
	GetAccountById(accountId string) (Profile, error)
	GetAccountByEmail(email string) (Profile, error)
	GetProfilesByIds(ids []string) ([]Profile, error)
	CreateEvent(params CreateEventParams) (Event, error)
	GetEventByExternalId(externalId string) (Event, error)
	ListEvents() ([]Event, error)
	CreateEventMessage(params CreateEventMessageParams) (EventMessage, error)
	ListEventMessages(eventId int) ([]EventMessage, error)
	GetEventMessage(id string) (EventMessage, error)
	DeleteEventMessage(id, userId string) (int64, error)
	CreateCommunityMessage(params CreateCommunityMessageParams) (CommunityMessage, error)
	ListCommunityMessages(limit int) ([]CommunityMessage, error)
	GetCommunityMessage(id string) (CommunityMessage, error)
	DeleteCommunityMessage(id, userId string) (int64, error)
	UpsertTypingIndicator(eventId int, userId string, lastTypedAt time.Time) (TypingIndicator, error)
	CreateConnection(requesterId, receiverId string) (Connection, error)
	GetConnection(id string) (Connection, error)
	ListConnections(userId string) ([]Connection, error)
	ConnectionExistsBetween(userA, userB string) bool
	AcceptConnection(id string) (int64, error)
	DeleteConnection(id string) (int64, error)
}
