// Package policy is the single source of truth for document authorization.
// Every caller that needs a read, modify, delete or version verdict routes
// through these functions; none of them has side effects.
package policy

import "github.com/kirillkom/docs-governance/internal/core/domain"

// Check names the rule that produced a verdict, used for metrics and audit.
type Check string

const (
	CheckRead            Check = "read"
	CheckModifyMetadata  Check = "modify_metadata"
	CheckDeleteOrVersion Check = "delete_or_version"
	CheckConfidentiality Check = "set_confidentiality"
)

// CanRead grants read and download access. Confidential documents are
// readable by the uploader, explicit grantees and, for process-linked
// documents, the owner and creator of the linked process.
func CanRead(doc *domain.Document, actorID string, process *domain.Process) bool {
	if doc == nil || actorID == "" {
		return false
	}
	if !doc.Confidential {
		return true
	}
	if isUploaderOrGrantee(doc, actorID) {
		return true
	}
	return doc.ProcessLinked() && isProcessOwnerOrCreator(doc, actorID, process)
}

// CanModifyMetadata is narrower than CanRead: the process owner and creator
// are not included unless they are also the uploader or a grantee.
func CanModifyMetadata(doc *domain.Document, actorID string) bool {
	if doc == nil || actorID == "" {
		return false
	}
	if !doc.Confidential {
		return true
	}
	return isUploaderOrGrantee(doc, actorID)
}

// CanDeleteOrAddVersion applies the same rule as CanModifyMetadata.
func CanDeleteOrAddVersion(doc *domain.Document, actorID string) bool {
	return CanModifyMetadata(doc, actorID)
}

// CanSetConfidentiality gates changes to the confidentiality flag. On a
// process-linked document only the process owner or creator may toggle it;
// otherwise the uploader decides.
func CanSetConfidentiality(doc *domain.Document, actorID string, process *domain.Process) bool {
	if doc == nil || actorID == "" {
		return false
	}
	if doc.ProcessLinked() {
		return isProcessOwnerOrCreator(doc, actorID, process)
	}
	return doc.UploadedBy == actorID
}

func isUploaderOrGrantee(doc *domain.Document, actorID string) bool {
	return doc.UploadedBy == actorID || doc.Grants.Has(actorID)
}

func isProcessOwnerOrCreator(doc *domain.Document, actorID string, process *domain.Process) bool {
	if process == nil || process.ID != doc.RefID {
		return false
	}
	return process.OwnerID == actorID || process.CreatorID == actorID
}
