package config

import "time"

const (
	// Session store
	DefaultSessionTTL = 24 * time.Hour
	DefaultKeyPrefix  = "meet:"

	// Chat
	DefaultChatRateLimit  = 20
	DefaultChatRateWindow = 10 * time.Second
	MaxChatMessageLength  = 4000

	// Realtime
	SendBufferSize = 256

	// Presentation defaults
	DefaultPresentationPage = 1
	DefaultPresentationZoom = 1.0

	// Guest display names longer than this are truncated
	MaxDisplayNameLength = 64
)

// PermissionLevelRank orders the durable permission levels from most to least restrictive.
var PermissionLevelRank = map[string]int{
	"OWNER": 0,
	"ADMIN": 1,
	"ALL":   2,
}
