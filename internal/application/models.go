// Package application holds the life-certificate application entity, its
// status graph, and the record store contract the lifecycle engine runs on.
package application

import (
	"sort"
	"time"

	"lifecert/pkg/domain"
)

// Status is the lifecycle state of an application. Exactly one value at any
// time; transitions follow the directed graph encoded in transitions below.
type Status string

const (
	StatusDraft        Status = "DRAFT"
	StatusSubmitted    Status = "SUBMITTED"
	StatusAttested     Status = "ATTESTED"
	StatusRejected     Status = "REJECTED"
	StatusSentToSparsh Status = "SENT_TO_SPARSH"
)

var validStatuses = map[Status]bool{
	StatusDraft:        true,
	StatusSubmitted:    true,
	StatusAttested:     true,
	StatusRejected:     true,
	StatusSentToSparsh: true,
}

// ParseStatus validates an externally supplied status string.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, validStatuses[st]
}

// transitions maps each source status to the targets reachable from it and
// the role authorized to trigger the edge. REJECTED and SENT_TO_SPARSH have
// no outgoing edges: a rejected application can only be superseded by a new
// one, never resurrected.
var transitions = map[Status]map[Status]domain.Role{
	StatusSubmitted: {
		StatusAttested: domain.RoleNotary,
		StatusRejected: domain.RoleNotary,
	},
	StatusAttested: {
		StatusSentToSparsh: domain.RolePensioner,
	},
}

// AuthorizedRole returns the role allowed to move an application from one
// status to another, or false when the edge does not exist.
func AuthorizedRole(from, to Status) (domain.Role, bool) {
	role, ok := transitions[from][to]
	return role, ok
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) String() string { return string(s) }

// HistoryItem is one entry of the append-only status log. Entries are never
// edited or removed; the last entry always mirrors the current status.
type HistoryItem struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// Document references an uploaded attachment. Documents are immutable once
// the application is persisted.
type Document struct {
	ID          string `json:"id"`
	SlotID      string `json:"slot_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// DocumentSlot declares one attachment position on the submission form.
type DocumentSlot struct {
	ID       string
	Label    string
	Required bool
}

// DocumentSlots is the declarative required-documents schema for the annual
// life certificate. The engine enforces it at submission; form code reads it
// to render upload slots.
var DocumentSlots = []DocumentSlot{
	{ID: "passport", Label: "Passport (Front/Back)", Required: true},
	{ID: "ppo", Label: "PPO (Sparsh)", Required: true},
	{ID: "canadian_id", Label: "Canadian ID (Optional)", Required: false},
	{ID: "other", Label: "Other (Optional)", Required: false},
}

// Application is the central entity: a point-in-time snapshot of the
// pensioner's details plus attachments, attestation fields, and the status
// history. It never live-references the user profile, so later profile edits
// cannot alter an already-submitted application.
type Application struct {
	ID            domain.ApplicationID `json:"id"`
	RequesterID   string               `json:"requester_id"`
	PensionerName string               `json:"pensioner_name"`
	SubmittedDate time.Time            `json:"submitted_date"`
	Status        Status               `json:"status"`

	// Personal details
	FatherHusbandName string `json:"father_husband_name,omitempty"`
	DateOfBirth       string `json:"date_of_birth"`
	PlaceOfBirth      string `json:"place_of_birth,omitempty"`
	Nationality       string `json:"nationality,omitempty"`

	// Contact details
	Email             string `json:"email,omitempty"`
	OverseasAddress   string `json:"overseas_address,omitempty"`
	IndianAddress     string `json:"indian_address,omitempty"`
	PhoneNumber       string `json:"phone_number,omitempty"`
	IndianPhoneNumber string `json:"indian_phone_number,omitempty"`

	// Service details
	ServiceNumber string `json:"service_number"`
	Rank          string `json:"rank,omitempty"`
	PPONumber     string `json:"ppo_number"`

	// Passport details
	PassportNumber     string `json:"passport_number,omitempty"`
	PassportIssueDate  string `json:"passport_issue_date,omitempty"`
	PassportExpiryDate string `json:"passport_expiry_date,omitempty"`
	PassportAuthority  string `json:"passport_authority,omitempty"`

	// Attachments
	Documents []Document `json:"documents"`
	Signature string     `json:"signature,omitempty"`

	// Attestation fields, populated only after a notary acts.
	NotaryID        string     `json:"notary_id,omitempty"`
	NotaryName      string     `json:"notary_name,omitempty"`
	NotaryComments  string     `json:"notary_comments,omitempty"`
	NotarySignature string     `json:"notary_signature,omitempty"`
	AttestationDate *time.Time `json:"attestation_date,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	History []HistoryItem `json:"history"`
}

// Clone returns a deep copy so callers can never mutate store-held state.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	out := *a
	out.Documents = append([]Document(nil), a.Documents...)
	out.History = append([]HistoryItem(nil), a.History...)
	if a.AttestationDate != nil {
		d := *a.AttestationDate
		out.AttestationDate = &d
	}
	return &out
}

// RelevantDate is the timestamp feeds sort by: the attestation date when a
// notary has acted, otherwise the submission date.
func (a *Application) RelevantDate() time.Time {
	if a.AttestationDate != nil {
		return *a.AttestationDate
	}
	return a.SubmittedDate
}

// SortByRelevantDate orders applications newest-relevant-activity first.
func SortByRelevantDate(apps []*Application) {
	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].RelevantDate().After(apps[j].RelevantDate())
	})
}
