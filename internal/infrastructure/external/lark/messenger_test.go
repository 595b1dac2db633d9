package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMessage struct {
	receiveIDType string
	receiveID     string
	msgType       string
	content       string
}

type mockMessageSender struct {
	sent []sentMessage
	err  error
}

func (m *mockMessageSender) SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, sentMessage{receiveIDType, receiveID, msgType, content})
	return "om_1", nil
}

func TestMessenger_SendText(t *testing.T) {
	api := &mockMessageSender{}
	m := NewMessenger(api, "oc_review", zap.NewNop())

	require.NoError(t, m.SendText(context.Background(), "Task 2 of \"octo_widgets_1\"\nnow fails"))
	require.Len(t, api.sent, 1)

	msg := api.sent[0]
	assert.Equal(t, ReceiveIDTypeChat, msg.receiveIDType)
	assert.Equal(t, "oc_review", msg.receiveID)
	assert.Equal(t, "text", msg.msgType)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(msg.content), &content))
	assert.Equal(t, "Task 2 of \"octo_widgets_1\"\nnow fails", content["text"])

	assert.Error(t, m.SendText(context.Background(), "  "))
}

func TestMessenger_SendCard(t *testing.T) {
	api := &mockMessageSender{}
	m := NewMessenger(api, "oc_review", zap.NewNop())

	require.NoError(t, m.SendCard(context.Background(), "Task 1 flagged", []string{"Reason: typo", "Scenario: stop_at_task1"}))
	require.Len(t, api.sent, 1)
	assert.Equal(t, "interactive", api.sent[0].msgType)

	var c card
	require.NoError(t, json.Unmarshal([]byte(api.sent[0].content), &c))
	assert.Equal(t, "Task 1 flagged", c.Header.Title.Content)
	require.Len(t, c.Elements, 1)
	assert.Equal(t, "Reason: typo\nScenario: stop_at_task1", c.Elements[0].Text.Content)

	assert.Error(t, m.SendCard(context.Background(), "", nil))
}

func TestMessenger_APIFailure(t *testing.T) {
	m := NewMessenger(&mockMessageSender{err: errors.New("API error: code=230002")}, "oc_review", zap.NewNop())
	err := m.SendCard(context.Background(), "title", nil)
	assert.ErrorContains(t, err, "code=230002")
}

func TestNewNotificationSender(t *testing.T) {
	sender := NewNotificationSender(Config{AppID: "cli_1", AppSecret: ""}, zap.NewNop())
	_, isLog := sender.(*LogSender)
	assert.True(t, isLog)
	assert.NoError(t, sender.SendText(context.Background(), "hello"))

	sender = NewNotificationSender(Config{AppID: "cli_1", AppSecret: "secret", ChatID: "oc_review"}, zap.NewNop())
	_, isMessenger := sender.(*Messenger)
	assert.True(t, isMessenger)
}
