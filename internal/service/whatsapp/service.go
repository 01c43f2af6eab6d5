package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/flockwatch/internal/config"
	"github.com/mamadbah2/flockwatch/internal/domain/models"
	"github.com/mamadbah2/flockwatch/internal/service/aggregation"
	"github.com/mamadbah2/flockwatch/internal/service/commands"
	client "github.com/mamadbah2/flockwatch/pkg/clients/whatsapp"
)

const sendTimeout = 10 * time.Second

// ErrNoManager is returned when a notification has no configured recipient.
var ErrNoManager = errors.New("no manager recipient configured")

// MessagingService describes the operations the HTTP layer can perform.
type MessagingService interface {
	VerifyWebhookToken(mode, verifyToken, challenge string) (string, error)
	HandleWebhook(ctx context.Context, payload models.WebhookPayload) error
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// MetaWhatsAppService is the production implementation backed by WhatsApp Cloud API.
type MetaWhatsAppService struct {
	cfg        config.WhatsAppConfig
	client     client.Client
	dispatcher commands.Dispatcher
	logger     *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, client client.Client, dispatcher commands.Dispatcher, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:        cfg,
		client:     client,
		dispatcher: dispatcher,
		logger:     logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

var usage = map[models.CommandType]string{
	models.CommandMortality:   "Report deaths, e.g. /mortality B-12 3 heat stress.",
	models.CommandFeed:        "Report feed in kg with optional average weight, e.g. /feed B-12 50 1.8.",
	models.CommandVaccination: "Report vaccinations, e.g. /vaccination B-12 1 gumboro.",
	models.CommandHealth:      "Report overall health, e.g. /health B-12 Good.",
	models.CommandStatus:      "Show batch figures, e.g. /status B-12.",
}

const helpMessage = "Unknown command. Supported: /mortality, /feed, /vaccination, /health, /status."

// VerifyWebhookToken validates the callback verification token.
func (s *MetaWhatsAppService) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	if mode == "" || verifyToken == "" {
		return "", errors.New("missing mode or verify token")
	}

	if !strings.EqualFold(mode, "subscribe") {
		return "", fmt.Errorf("unsupported hub.mode %s", mode)
	}

	if verifyToken != s.cfg.VerifyToken {
		return "", errors.New("invalid verify token")
	}

	return challenge, nil
}

// HandleWebhook processes inbound webhook payloads.
func (s *MetaWhatsAppService) HandleWebhook(ctx context.Context, payload models.WebhookPayload) error {
	var firstErr error

	for _, msg := range payload.Messages() {
		if err := s.handleInboundMessage(ctx, msg); err != nil {
			s.logger.Error("failed to handle inbound message", zap.Error(err), zap.String("message_id", msg.ID))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (s *MetaWhatsAppService) handleInboundMessage(ctx context.Context, msg models.InboundMessage) error {
	text := msg.CommandText()
	if text == "" {
		return errors.New("empty message body")
	}

	cmd := models.ParseCommand(text)
	s.logger.Info("parsed inbound command",
		zap.String("from", msg.From),
		zap.String("command", string(cmd.Type)),
		zap.String("batch_id", cmd.BatchID()),
		zap.Any("args", cmd.Args))

	reply, err := s.dispatcher.HandleCommand(ctx, cmd, msg.From)
	if err != nil {
		reply = s.errorReply(cmd, err)
	}

	return s.send(ctx, msg.From, reply, false)
}

// errorReply turns a dispatch failure into something staff can act on.
func (s *MetaWhatsAppService) errorReply(cmd models.Command, err error) string {
	var verr *aggregation.ValidationError
	switch {
	case errors.Is(err, commands.ErrUnsupportedCommand):
		return helpMessage
	case errors.Is(err, commands.ErrInvalidArguments):
		return "Could not read that command. " + usage[cmd.Type]
	case errors.Is(err, models.ErrBatchNotFound):
		return "Unknown batch. Check the batch code and try again."
	case errors.As(err, &verr):
		return fmt.Sprintf("Report rejected: %s %s.", verr.Field, verr.Reason)
	default:
		s.logger.Error("command failed", zap.String("command", string(cmd.Type)), zap.Error(err))
		return "The report could not be saved. Please send it again in a moment."
	}
}

// SendOutbound lets internal operators push quick notifications via HTTP.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	return s.send(ctx, req.To, req.Message, req.PreviewURL)
}

// NotifyAlert sends a newly raised critical alert to the farm manager.
func (s *MetaWhatsAppService) NotifyAlert(ctx context.Context, alert models.Alert) error {
	if s.cfg.ManagerID == "" {
		return ErrNoManager
	}
	body := fmt.Sprintf("[%s] %s\n%s", strings.ToUpper(string(alert.Severity)), alert.Title, alert.Message)
	return s.send(ctx, s.cfg.ManagerID, body, false)
}

// SendDigest sends the insight digest to the farm manager.
func (s *MetaWhatsAppService) SendDigest(ctx context.Context, text string) error {
	if s.cfg.ManagerID == "" {
		return ErrNoManager
	}
	return s.send(ctx, s.cfg.ManagerID, text, false)
}

func (s *MetaWhatsAppService) send(ctx context.Context, to, body string, previewURL bool) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := s.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:         to,
		Body:       body,
		PreviewURL: previewURL,
	})

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Throttled() {
		s.logger.Warn("whatsapp rate limit reached", zap.String("to", to), zap.String("trace_id", apiErr.TraceID))
	}
	return err
}
