package whatsapp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/flockwatch/internal/config"
	"github.com/mamadbah2/flockwatch/internal/domain/models"
	"github.com/mamadbah2/flockwatch/internal/service/aggregation"
	"github.com/mamadbah2/flockwatch/internal/service/commands"
	client "github.com/mamadbah2/flockwatch/pkg/clients/whatsapp"
)

type fakeClient struct {
	sent []client.SendTextMessageRequest
	err  error
}

func (c *fakeClient) SendTextMessage(_ context.Context, req client.SendTextMessageRequest) (*client.SendTextMessageResponse, error) {
	c.sent = append(c.sent, req)
	if c.err != nil {
		return nil, c.err
	}
	return &client.SendTextMessageResponse{}, nil
}

type fakeDispatcher struct {
	reply string
	err   error
	got   []models.Command
}

func (d *fakeDispatcher) HandleCommand(_ context.Context, cmd models.Command, _ string) (string, error) {
	d.got = append(d.got, cmd)
	return d.reply, d.err
}

func textPayload(from, body string) models.WebhookPayload {
	return models.WebhookPayload{Entry: []models.WebhookEntry{{
		Changes: []models.WebhookChange{{Value: models.WebhookValue{
			Messages: []models.InboundMessage{{From: from, ID: "wamid.in", Type: "text", Text: &models.TextContent{Body: body}}},
		}}},
	}}}
}

func TestHandleWebhook_RepliesWithDispatchResult(t *testing.T) {
	wa := &fakeClient{}
	dispatcher := &fakeDispatcher{reply: "Mortality logged"}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, dispatcher, nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), textPayload("224600000000", "/mortality B-1 3")))

	require.Len(t, dispatcher.got, 1)
	assert.Equal(t, models.CommandMortality, dispatcher.got[0].Type)
	require.Len(t, wa.sent, 1)
	assert.Equal(t, "224600000000", wa.sent[0].To)
	assert.Equal(t, "Mortality logged", wa.sent[0].Body)
}

func TestHandleWebhook_ErrorReplies(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{commands.ErrUnsupportedCommand, helpMessage},
		{commands.ErrInvalidArguments, "Could not read that command. " + usage[models.CommandMortality]},
		{models.ErrBatchNotFound, "Unknown batch"},
		{&aggregation.ValidationError{Field: "deathCount", Reason: "must not be negative"}, "Report rejected: deathCount must not be negative."},
		{errors.New("mongo down"), "could not be saved"},
	}

	for _, tc := range cases {
		wa := &fakeClient{}
		svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, &fakeDispatcher{err: tc.err}, nil)

		require.NoError(t, svc.HandleWebhook(context.Background(), textPayload("1", "/mortality B-1")))
		require.Len(t, wa.sent, 1)
		assert.Contains(t, wa.sent[0].Body, tc.want)
	}
}

func TestHandleWebhook_EmptyMessage(t *testing.T) {
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, &fakeClient{}, &fakeDispatcher{}, nil)
	payload := textPayload("1", "")
	payload.Entry[0].Changes[0].Value.Messages[0].Text = nil

	assert.Error(t, svc.HandleWebhook(context.Background(), payload))
}

func TestHandleWebhook_InteractiveReply(t *testing.T) {
	dispatcher := &fakeDispatcher{reply: "ok"}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, &fakeClient{}, dispatcher, nil)

	payload := textPayload("1", "")
	payload.Entry[0].Changes[0].Value.Messages[0].Text = nil
	payload.Entry[0].Changes[0].Value.Messages[0].Interactive = &models.InteractiveContent{
		Type:        "button_reply",
		ButtonReply: &models.ReplyOption{ID: "/status B-7", Title: "Status"},
	}

	require.NoError(t, svc.HandleWebhook(context.Background(), payload))
	require.Len(t, dispatcher.got, 1)
	assert.Equal(t, []string{"B-7"}, dispatcher.got[0].Args)
}

func TestVerifyWebhookToken(t *testing.T) {
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{VerifyToken: "v"}, &fakeClient{}, &fakeDispatcher{}, nil)

	challenge, err := svc.VerifyWebhookToken("subscribe", "v", "42")
	require.NoError(t, err)
	assert.Equal(t, "42", challenge)

	_, err = svc.VerifyWebhookToken("subscribe", "wrong", "42")
	assert.Error(t, err)
	_, err = svc.VerifyWebhookToken("unsubscribe", "v", "42")
	assert.Error(t, err)
}

func TestNotifyAlertAndDigest(t *testing.T) {
	wa := &fakeClient{}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{ManagerID: "224611111111"}, wa, &fakeDispatcher{}, nil)
	ctx := context.Background()

	require.NoError(t, svc.NotifyAlert(ctx, models.Alert{Severity: models.SeverityCritical, Title: "Poor flock health", Message: "House 1 health score dropped to 30."}))
	require.NoError(t, svc.SendDigest(ctx, "Farm insights:"))

	require.Len(t, wa.sent, 2)
	assert.Equal(t, "224611111111", wa.sent[0].To)
	assert.Equal(t, "[CRITICAL] Poor flock health\nHouse 1 health score dropped to 30.", wa.sent[0].Body)
	assert.Equal(t, "Farm insights:", wa.sent[1].Body)

	noManager := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, &fakeDispatcher{}, nil)
	assert.ErrorIs(t, noManager.NotifyAlert(ctx, models.Alert{}), ErrNoManager)
}
