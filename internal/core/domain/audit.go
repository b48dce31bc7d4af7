package domain

import "time"

type AuditAction string

const (
	AuditRead     AuditAction = "read"
	AuditCreate   AuditAction = "create"
	AuditModify   AuditAction = "modify"
	AuditDelete   AuditAction = "delete"
	AuditDownload AuditAction = "download"
)

func (a AuditAction) Valid() bool {
	switch a {
	case AuditRead, AuditCreate, AuditModify, AuditDelete, AuditDownload:
		return true
	default:
		return false
	}
}

const (
	ResourceDocument = "document"
	ResourceProcess  = "processus"
)

// AuditEntry is one line of the access journal.
type AuditEntry struct {
	ID           string         `json:"id"`
	ActorID      string         `json:"actor_id"`
	Action       AuditAction    `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	ResourceName string         `json:"resource_name,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

type JournalFilter struct {
	ActorID      string
	Action       AuditAction
	ResourceType string
	ResourceID   string
	From         *time.Time
	To           *time.Time
	Limit        int
}
