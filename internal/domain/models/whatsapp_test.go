package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func webhookWith(msgs ...InboundMessage) WebhookPayload {
	return WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []WebhookEntry{
			{Changes: []WebhookChange{{Field: "messages", Value: WebhookValue{Messages: msgs[:1]}}}},
			{Changes: []WebhookChange{{Field: "messages", Value: WebhookValue{Messages: msgs[1:]}}}},
		},
	}
}

func TestWebhookPayload_ReportedBatches(t *testing.T) {
	payload := webhookWith(
		InboundMessage{ID: "m1", Text: &TextContent{Body: "/mortality B-2 3"}},
		InboundMessage{ID: "m2", Text: &TextContent{Body: "/status B-9"}},
		InboundMessage{ID: "m3", Interactive: &InteractiveContent{ButtonReply: &ReplyOption{ID: "/feed B-1 40"}}},
		InboundMessage{ID: "m4", Text: &TextContent{Body: "/health B-2 good"}},
		InboundMessage{ID: "m5", Text: &TextContent{Body: "thanks"}},
	)

	assert.Len(t, payload.Messages(), 5)
	assert.Equal(t, []string{"B-2", "B-1"}, payload.ReportedBatches())
}

func TestInboundMessage_CommandText(t *testing.T) {
	assert.Equal(t, "/feed B1 20", InboundMessage{Text: &TextContent{Body: "/feed B1 20"}}.CommandText())
	assert.Equal(t, "/status B1", InboundMessage{Interactive: &InteractiveContent{ListReply: &ReplyOption{ID: "/status B1"}}}.CommandText())
	assert.Empty(t, InboundMessage{Type: "image"}.CommandText())
}
