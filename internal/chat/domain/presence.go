package domain

const (
	// StatusOnline presence key exists
	StatusOnline = "online"
	// StatusOffline presence key expired or never set
	StatusOffline = "offline"
)

// PresenceInfo presence read model for the REST surface
type PresenceInfo struct {
	UserID int64  `json:"user_id"`
	Status string `json:"status"`
}

// UnreadInfo unread counter read model for the REST surface
type UnreadInfo struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
	Unread         int64 `json:"unread"`
}
