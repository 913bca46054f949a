package api

// Message is the server's wire representation of a chat message.
// attachment_path may be an absolute URL or a server-relative storage path;
// the chat core passes it through untouched and leaves URL resolution to
// the rendering layer.
type Message struct {
	ID             int64   `json:"id"`
	SenderID       int64   `json:"sender_id"`
	Body           string  `json:"body"`
	AttachmentPath *string `json:"attachment_path"`
	AttachmentType *string `json:"attachment_type"`
	AttachmentName *string `json:"attachment_name"`
	AttachmentSize *int64  `json:"attachment_size"`
	IsRead         bool    `json:"is_read"`
	ReadAt         *string `json:"read_at"`
	CreatedAt      string  `json:"created_at"`
}

type messagesResponse struct {
	Messages []Message `json:"messages"`
}

type sendResponse struct {
	Message Message `json:"message"`
}

type unreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}
