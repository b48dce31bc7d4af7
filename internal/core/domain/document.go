package domain

import (
	"io"
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusInReview  DocumentStatus = "en_revision"
	StatusValidated DocumentStatus = "valide"
	StatusActive    DocumentStatus = "actif"
	StatusArchived  DocumentStatus = "archive"
	StatusObsolete  DocumentStatus = "obsolete"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusInReview, StatusValidated, StatusActive, StatusArchived, StatusObsolete:
		return true
	default:
		return false
	}
}

type DocumentKind string

const (
	KindGeneral DocumentKind = "general"
	KindProcess DocumentKind = "processus"
)

func (k DocumentKind) Valid() bool {
	return k == KindGeneral || k == KindProcess
}

type ReferenceType string

const (
	RefProcess ReferenceType = "processus"
	RefEntity  ReferenceType = "entite"
	RefProject ReferenceType = "projet"
)

func (r ReferenceType) Valid() bool {
	switch r {
	case "", RefProcess, RefEntity, RefProject:
		return true
	default:
		return false
	}
}

type Document struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Kind             DocumentKind   `json:"kind"`
	RefType          ReferenceType  `json:"reference_type,omitempty"`
	RefID            string         `json:"reference_id,omitempty"`
	Description      string         `json:"description,omitempty"`
	Tags             []string       `json:"tags"`
	Status           DocumentStatus `json:"status"`
	Confidential     bool           `json:"confidential"`
	StorageKey       string         `json:"-"`
	OriginalFilename string         `json:"original_filename"`
	Size             int64          `json:"size"`
	ContentType      string         `json:"content_type"`
	Version          string         `json:"version"`
	UploadedBy       string         `json:"uploaded_by"`
	ValidatedBy      string         `json:"validated_by,omitempty"`
	ValidatedAt      *time.Time     `json:"validated_at,omitempty"`
	Grants           PermissionSet  `json:"grants"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// ProcessLinked reports whether the document references a governance process.
func (d *Document) ProcessLinked() bool {
	return d.RefType == RefProcess && strings.TrimSpace(d.RefID) != ""
}

// Clone returns a deep copy so callers can mutate a snapshot freely.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Tags = append([]string(nil), d.Tags...)
	out.Grants = d.Grants.Clone()
	if d.ValidatedAt != nil {
		at := *d.ValidatedAt
		out.ValidatedAt = &at
	}
	return &out
}

// VersionEntry is one immutable revision in a document's ledger.
type VersionEntry struct {
	ID               string    `json:"id"`
	DocumentID       string    `json:"document_id"`
	Version          string    `json:"version"`
	StorageKey       string    `json:"-"`
	OriginalFilename string    `json:"original_filename"`
	ContentType      string    `json:"content_type"`
	Size             int64     `json:"size"`
	Comment          string    `json:"comment,omitempty"`
	UploadedBy       string    `json:"uploaded_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// Process is the read-only view of a governance process consulted by the
// access policy.
type Process struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	CreatorID string `json:"creator_id"`
}

// Actor is the authenticated identity on whose behalf an operation runs.
type Actor struct {
	ID        string
	Email     string
	Role      string
	IPAddress string
	UserAgent string
}

const RoleAdmin = "admin"

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type FileUpload struct {
	OriginalFilename string
	ContentType      string
	Size             int64
}

type CreateDocumentInput struct {
	Name         string
	Kind         DocumentKind
	RefType      ReferenceType
	RefID        string
	Description  string
	Tags         []string
	Major        int
	Minor        int
	Patch        int
	Confidential bool
	Grantees     []string
	File         FileUpload
}

type NewVersionInput struct {
	Comment string
	File    FileUpload
}

// MetadataPatch carries optional updates; nil fields are left untouched.
type MetadataPatch struct {
	Name         *string
	Description  *string
	Status       *DocumentStatus
	Tags         *[]string
	Confidential *bool
	Grantees     *[]string
	ValidatedBy  *string
}

type DocumentFilter struct {
	Kind    DocumentKind
	RefType ReferenceType
	RefID   string
	Status  DocumentStatus
	Search  string
}

// Download is an open handle on a stored revision.
type Download struct {
	Filename    string
	ContentType string
	Size        int64
	Version     string
	Body        io.ReadCloser
}

type Comment struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
