package evolution

// EventMessagesUpsert is the inbound event type that carries new messages and
// is the only one this service processes beyond the audit record.
const EventMessagesUpsert = "messages.upsert"

// List of event names the gateway accepts in a webhook configuration.
var supportedWebhookEvents = []string{
	// Lifecycle
	"APPLICATION_STARTUP",
	"QRCODE_UPDATED",
	"CONNECTION_UPDATE",
	"NEW_TOKEN",

	// Messages
	"MESSAGES_SET",
	"MESSAGES_UPSERT",
	"MESSAGES_UPDATE",
	"MESSAGES_DELETE",
	"SEND_MESSAGE",

	// Contacts and presence
	"CONTACTS_SET",
	"CONTACTS_UPSERT",
	"CONTACTS_UPDATE",
	"PRESENCE_UPDATE",

	// Chats
	"CHATS_SET",
	"CHATS_UPDATE",
	"CHATS_UPSERT",
	"CHATS_DELETE",

	// Groups
	"GROUPS_UPSERT",
	"GROUPS_UPDATE",
	"GROUP_PARTICIPANTS_UPDATE",

	// Typebot integrations
	"TYPEBOT_START",
	"TYPEBOT_CHANGE_STATUS",
}

// Map for quick validation
var webhookEventMap map[string]bool

func init() {
	webhookEventMap = make(map[string]bool)
	for _, eventType := range supportedWebhookEvents {
		webhookEventMap[eventType] = true
	}
}

// IsValidWebhookEvent reports whether the gateway knows the given event name.
func IsValidWebhookEvent(eventType string) bool {
	return webhookEventMap[eventType]
}
