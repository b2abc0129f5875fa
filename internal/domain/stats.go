package domain

import "time"

// ChatStats - сводка для админской панели
type ChatStats struct {
	TotalConversations  int64     `json:"total_conversations"`
	ActiveConversations int64     `json:"active_conversations"`
	NewConversations24h int64     `json:"new_conversations_24h"`
	TotalMessages       int64     `json:"total_messages"`
	GeneratedAt         time.Time `json:"generated_at"`
}
