package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hackhub-io/hackchat/internal/errs"
	"github.com/hackhub-io/hackchat/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is a frame sent by a connected socket. Exactly one of the
// operation fields is set.
type ClientMessage struct {
	BaseMessage
	Open    *OpenScope `json:"open,omitempty"`
	Close   *CloseOp   `json:"close,omitempty"`
	Publish *Publish   `json:"publish,omitempty"`
	Delete  *Delete    `json:"delete,omitempty"`
	Typing  *Typing    `json:"typing,omitempty"`
}

type OpenScope struct {
	Kind    string `json:"kind"`
	EventId string `json:"event_id,omitempty"`
}

type CloseOp struct{}

type Publish struct {
	Content string `json:"content"`
}

type Delete struct {
	MessageId string `json:"message_id"`
}

type Typing struct{}

type ServerMessage struct {
	BaseMessage
	Response *Response `json:"response,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// Snapshot carries the full current view of the open conversation. The
// client replaces its state wholesale rather than patching it.
type Snapshot struct {
	Channel  string             `json:"channel"`
	Messages []types.Message    `json:"messages"`
	Typing   []types.TypingUser `json:"typing,omitempty"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

// ErrResponse maps a domain error onto a socket response frame.
func ErrResponse(id int, err error) *ServerMessage {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNotAuthenticated):
		code = http.StatusUnauthorized
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, errs.ErrPermissionDenied):
		code = http.StatusForbidden
	case errors.Is(err, errs.ErrValidation):
		code = http.StatusBadRequest
	}

	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        err.Error(),
		},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
