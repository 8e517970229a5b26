// Package notify publishes per-user events over Redis pub/sub. The
// websocket handler forwards them to connected clients.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// EnhancementMessage announces a terminal enhancement transition.
// Field names are part of the client protocol.
type EnhancementMessage struct {
	Type            string `json:"type"`
	Status          string `json:"status"`
	ResumeID        uint   `json:"resume_id"`
	EnhancementID   uint   `json:"enhancement_id"`
	EnhancementType string `json:"enhancement_type"`
	Provider        string `json:"provider"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// Publisher sends notifications to a user's channel.
type Publisher struct {
	redisClient redis.UniversalClient
}

// NewPublisher builds a Publisher.
func NewPublisher(redisClient redis.UniversalClient) *Publisher {
	return &Publisher{redisClient: redisClient}
}

// Channel returns the pub/sub channel for a user.
func Channel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

// PublishEnhancement pushes an enhancement event to the owning user.
func (p *Publisher) PublishEnhancement(ctx context.Context, userID uint, msg EnhancementMessage) error {
	msg.Type = "enhancement"
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notify message: %w", err)
	}
	if err := p.redisClient.Publish(ctx, Channel(userID), payload).Err(); err != nil {
		return fmt.Errorf("publish notify message: %w", err)
	}
	return nil
}
