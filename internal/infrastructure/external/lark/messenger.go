package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/hei-liquidation/internal/application/port"
)

const (
	receiveIDTypeOpenID = "open_id"
	msgTypeText         = "text"
	msgTypeInteractive  = "interactive"
)

// Messenger implements port.LarkMessageSender over the IM message API
type Messenger struct {
	client *SDKClient
	logger *zap.Logger
}

// NewMessenger creates a new Lark message sender adapter
func NewMessenger(client *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		client: client,
		logger: logger,
	}
}

// SendMessage sends a text message to a user
func (m *Messenger) SendMessage(ctx context.Context, openID string, content string) error {
	if openID == "" {
		return fmt.Errorf("openID cannot be empty")
	}
	if content == "" {
		return fmt.Errorf("content cannot be empty")
	}

	body, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return fmt.Errorf("failed to marshal text content: %w", err)
	}

	if _, err := m.send(ctx, openID, msgTypeText, string(body)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendCardMessage sends an interactive card to a user
func (m *Messenger) SendCardMessage(ctx context.Context, openID string, cardContent interface{}) error {
	if openID == "" {
		return fmt.Errorf("openID cannot be empty")
	}
	if cardContent == nil {
		return fmt.Errorf("cardContent cannot be nil")
	}

	cardJSON, err := json.Marshal(cardContent)
	if err != nil {
		return fmt.Errorf("failed to marshal card content: %w", err)
	}

	if _, err := m.send(ctx, openID, msgTypeInteractive, string(cardJSON)); err != nil {
		return fmt.Errorf("failed to send card message: %w", err)
	}
	return nil
}

// send returns the id of the created message
func (m *Messenger) send(ctx context.Context, openID, msgType, content string) (string, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDTypeOpenID).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(openID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := m.client.GetClient().Im.Message.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", openID),
			zap.Error(err))
		return "", err
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", openID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Debug("Message sent",
		zap.String("message_id", messageID),
		zap.String("receive_id", openID),
		zap.String("msg_type", msgType))

	return messageID, nil
}

// Verify interface compliance
var _ port.LarkMessageSender = (*Messenger)(nil)
