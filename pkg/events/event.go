package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teamup-app/teamup-backend/pkg/enums"
)

// Message attribute keys carried alongside every published event.
const (
	AttrEventID   = "eventId"
	AttrEventType = "eventType"
	AttrRole      = "role"
	AttrSource    = "source"

	TypeUserCreated = "user.created"
	SourceAuth      = "auth-service"
)

// UserCreatedEvent is the wire payload published after a successful
// registration. Field names follow the consumer contract and must not change
// without versioning the topic.
type UserCreatedEvent struct {
	UserID     uuid.UUID  `json:"userId"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Role       enums.Role `json:"role"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// Validate rejects payloads a consumer could never materialize.
func (e UserCreatedEvent) Validate() error {
	if e.UserID == uuid.Nil {
		return fmt.Errorf("user created event: user id is required")
	}
	if e.Username == "" {
		return fmt.Errorf("user created event: username is required")
	}
	if e.Email == "" {
		return fmt.Errorf("user created event: email is required")
	}
	if !e.Role.IsValid() {
		return fmt.Errorf("user created event: invalid role %q", e.Role)
	}
	return nil
}

// Marshal renders the wire JSON.
func (e UserCreatedEvent) Marshal() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// Attributes returns the message attributes for routing and tracing.
func (e UserCreatedEvent) Attributes() map[string]string {
	return map[string]string{
		AttrEventID:   e.UserID.String(),
		AttrEventType: TypeUserCreated,
		AttrRole:      string(e.Role),
		AttrSource:    SourceAuth,
	}
}

// UnmarshalUserCreated parses and validates a wire payload.
func UnmarshalUserCreated(data []byte) (UserCreatedEvent, error) {
	var evt UserCreatedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return UserCreatedEvent{}, fmt.Errorf("decoding user created event: %w", err)
	}
	if err := evt.Validate(); err != nil {
		return UserCreatedEvent{}, err
	}
	return evt, nil
}
