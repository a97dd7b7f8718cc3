package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/whispernet/warden/ports"
)

const (
	LoginTopic  = "warden.session.login"
	LogoutTopic = "warden.session.logout"
)

// SessionEvent represents a session lifecycle event
type SessionEvent struct {
	Subject string `json:"subject"`
	TokenID string `json:"token_id,omitempty"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, subject string, sessionID string) error {
	return p.publish(LoginTopic, SessionEvent{Subject: subject, TokenID: sessionID})
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, subject string, tokenID string) error {
	return p.publish(LogoutTopic, SessionEvent{Subject: subject, TokenID: tokenID})
}

func (p *WatermillPublisher) publish(topic string, event SessionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(event.TokenID, payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
