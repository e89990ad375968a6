// Package notify carries structured records of committed claim mutations to
// an external sink.
//
// Emission is best-effort: a sink failure is logged and counted but never
// fails the operation that produced the notification.
package notify

import (
	"strings"
)

// Kind identifies what happened.
type Kind string

const (
	KindClaimCreated  Kind = "claim_created"
	KindDocumentAdded Kind = "document_added"
	KindStatusUpdated Kind = "status_updated"
)

// Headline returns the first line of the human-readable rendering.
func (k Kind) Headline() string {
	switch k {
	case KindClaimCreated:
		return "Claim created"
	case KindDocumentAdded:
		return "Document added to claim"
	case KindStatusUpdated:
		return "Claim status updated"
	default:
		return string(k)
	}
}

// Field names used by the claim service.
const (
	FieldClaimID      = "claim_id"
	FieldClaimant     = "claimant"
	FieldPolicyNumber = "policy_number"
	FieldDocumentURL  = "document_url"
	FieldNewStatus    = "new_status"
)

var fieldLabels = map[string]string{
	FieldClaimID:      "Claim ID",
	FieldClaimant:     "Claimant",
	FieldPolicyNumber: "Policy Number",
	FieldDocumentURL:  "Document URL",
	FieldNewStatus:    "New Status",
}

// Field is one named value of a notification. Order is significant.
type Field struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Label is the human-readable name of the field.
func (f Field) Label() string {
	if l, ok := fieldLabels[f.Name]; ok {
		return l
	}
	return f.Name
}

// Notification is a structured record of one committed mutation.
type Notification struct {
	// Seq is the logical sequence number stamped by the Emitter. The store
	// journal assigns its own at append time.
	Seq int64 `json:"seq"`

	// OperationID identifies the operation that produced the record.
	OperationID string `json:"operation_id"`

	Kind    Kind    `json:"kind"`
	ClaimID uint64  `json:"claim_id"`
	Fields  []Field `json:"fields"`
}

// Field returns the value of the named field.
func (n Notification) Field(name string) (string, bool) {
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Text renders the notification one line per field, headline first.
func (n Notification) Text() string {
	var b strings.Builder
	b.WriteString(n.Kind.Headline())
	for _, f := range n.Fields {
		b.WriteByte('\n')
		b.WriteString(f.Label())
		b.WriteString(": ")
		b.WriteString(f.Value)
	}
	return b.String()
}
