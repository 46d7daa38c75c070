package domain

import "time"

// MessageKind tells where an inbox message came from
type MessageKind string

const (
	MessageKindContact    MessageKind = "contact"
	MessageKindNewsletter MessageKind = "newsletter"
)

// IsValid reports whether k is a known kind
func (k MessageKind) IsValid() bool {
	return k == MessageKindContact || k == MessageKindNewsletter
}

// Message is an entry in the admin inbox
type Message struct {
	ID        string      `json:"id"`
	Kind      MessageKind `json:"kind"`
	Name      string      `json:"name,omitempty"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone,omitempty"`
	Company   string      `json:"company,omitempty"`
	Subject   string      `json:"subject,omitempty"`
	Body      string      `json:"body,omitempty"`
	Read      bool        `json:"read"`
	IP        string      `json:"-"`
	CreatedAt time.Time   `json:"createdAt"`
	ReadAt    *time.Time  `json:"readAt,omitempty"`
}

// MessageListParams contains filters for the inbox
type MessageListParams struct {
	Kind   *MessageKind
	Read   *bool
	Query  string
	Limit  int
	Offset int
}

// MessageStats summarises the inbox
type MessageStats struct {
	Total            int `json:"total"`
	Unread           int `json:"unread"`
	Contact          int `json:"contact"`
	ContactUnread    int `json:"contactUnread"`
	Newsletter       int `json:"newsletter"`
	NewsletterUnread int `json:"newsletterUnread"`
}
