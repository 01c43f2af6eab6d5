package models

// WebhookPayload is the body Meta posts to the webhook for WhatsApp events.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// Messages flattens the staff messages across every entry and change.
func (p WebhookPayload) Messages() []InboundMessage {
	var out []InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			out = append(out, change.Value.Messages...)
		}
	}
	return out
}

// ReportedBatches lists, in first-seen order and without repeats, the batches
// that field report commands in the payload address.
func (p WebhookPayload) ReportedBatches() []string {
	var out []string
	seen := make(map[string]bool)
	for _, msg := range p.Messages() {
		cmd := ParseCommand(msg.CommandText())
		if !cmd.SubmitsReport() || seen[cmd.BatchID()] {
			continue
		}
		seen[cmd.BatchID()] = true
		out = append(out, cmd.BatchID())
	}
	return out
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Value WebhookValue `json:"value"`
	Field string       `json:"field"`
}

// WebhookValue carries the messages sent by farm staff. Delivery receipts are
// ignored.
type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Contacts         []Contact        `json:"contacts"`
	Messages         []InboundMessage `json:"messages"`
}

type Contact struct {
	Profile ContactProfile `json:"profile"`
	WaID    string         `json:"wa_id"`
}

type ContactProfile struct {
	Name string `json:"name"`
}

// InboundMessage is a staff message. Only text and interactive replies can
// carry a field command.
type InboundMessage struct {
	From        string              `json:"from"`
	ID          string              `json:"id"`
	Timestamp   string              `json:"timestamp"`
	Type        string              `json:"type"`
	Text        *TextContent        `json:"text,omitempty"`
	Interactive *InteractiveContent `json:"interactive,omitempty"`
}

// CommandText returns the text a command is parsed from: the body of a text
// message or the id of an interactive reply.
func (m InboundMessage) CommandText() string {
	if m.Text != nil {
		return m.Text.Body
	}
	if m.Interactive != nil {
		if m.Interactive.ButtonReply != nil {
			return m.Interactive.ButtonReply.ID
		}
		if m.Interactive.ListReply != nil {
			return m.Interactive.ListReply.ID
		}
	}
	return ""
}

type TextContent struct {
	Body string `json:"body"`
}

// InteractiveContent represents button/list replies. Their ids hold the command text.
type InteractiveContent struct {
	Type        string       `json:"type"`
	ButtonReply *ReplyOption `json:"button_reply,omitempty"`
	ListReply   *ReplyOption `json:"list_reply,omitempty"`
}

type ReplyOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
