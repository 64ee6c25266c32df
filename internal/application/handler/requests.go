package handler

import (
	"encoding/base64"
	"strings"

	"lifecert/internal/application"
	"lifecert/internal/application/service"
	domainerrors "lifecert/pkg/domain-errors"
)

// SubmitRequest is the HTTP body for POST /api/applications.
type SubmitRequest struct {
	PensionerName string `json:"pensioner_name"`

	FatherHusbandName string `json:"father_husband_name"`
	DateOfBirth       string `json:"date_of_birth"`
	PlaceOfBirth      string `json:"place_of_birth"`
	Nationality       string `json:"nationality"`

	Email             string `json:"email"`
	OverseasAddress   string `json:"overseas_address"`
	IndianAddress     string `json:"indian_address"`
	PhoneNumber       string `json:"phone_number"`
	IndianPhoneNumber string `json:"indian_phone_number"`

	ServiceNumber string `json:"service_number"`
	Rank          string `json:"rank"`
	PPONumber     string `json:"ppo_number"`

	PassportNumber     string `json:"passport_number"`
	PassportIssueDate  string `json:"passport_issue_date"`
	PassportExpiryDate string `json:"passport_expiry_date"`
	PassportAuthority  string `json:"passport_authority"`

	Documents []DocumentRequest `json:"documents"`
	Signature string            `json:"signature"`
}

// DocumentRequest is one uploaded attachment reference.
type DocumentRequest struct {
	ID          string `json:"id"`
	SlotID      string `json:"slot_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// Validate trims the identity fields. Domain validation (required fields,
// document slots, durable URLs) belongs to the engine; duplicate checks here
// would drift.
func (r *SubmitRequest) Validate() error {
	r.PensionerName = strings.TrimSpace(r.PensionerName)
	r.ServiceNumber = strings.TrimSpace(r.ServiceNumber)
	r.PPONumber = strings.TrimSpace(r.PPONumber)
	return nil
}

// Submission converts the request into the engine's input type.
func (r *SubmitRequest) Submission() service.Submission {
	docs := make([]application.Document, 0, len(r.Documents))
	for _, d := range r.Documents {
		docs = append(docs, application.Document{
			ID:          d.ID,
			SlotID:      d.SlotID,
			Name:        d.Name,
			ContentType: d.ContentType,
			URL:         d.URL,
		})
	}
	return service.Submission{
		PensionerName:     r.PensionerName,
		FatherHusbandName: r.FatherHusbandName,
		DateOfBirth:       r.DateOfBirth,
		PlaceOfBirth:      r.PlaceOfBirth,
		Nationality:       r.Nationality,

		Email:             r.Email,
		OverseasAddress:   r.OverseasAddress,
		IndianAddress:     r.IndianAddress,
		PhoneNumber:       r.PhoneNumber,
		IndianPhoneNumber: r.IndianPhoneNumber,

		ServiceNumber: r.ServiceNumber,
		Rank:          r.Rank,
		PPONumber:     r.PPONumber,

		PassportNumber:     r.PassportNumber,
		PassportIssueDate:  r.PassportIssueDate,
		PassportExpiryDate: r.PassportExpiryDate,
		PassportAuthority:  r.PassportAuthority,

		Documents: docs,
		Signature: r.Signature,
	}
}

// AttestRequest is the HTTP body for POST /api/applications/{id}/attest.
type AttestRequest struct {
	Signature string `json:"signature"`
	Comments  string `json:"comments"`
}

func (r *AttestRequest) Validate() error {
	if strings.TrimSpace(r.Signature) == "" {
		return domainerrors.New(domainerrors.CodeInvalidInput, "signature is required")
	}
	return nil
}

// RejectRequest is the HTTP body for POST /api/applications/{id}/reject.
type RejectRequest struct {
	Reason string `json:"reason"`
}

func (r *RejectRequest) Validate() error {
	if strings.TrimSpace(r.Reason) == "" {
		return domainerrors.New(domainerrors.CodeInvalidInput, "reason is required")
	}
	return nil
}

// SendRequest is the HTTP body for POST /api/applications/{id}/send. The
// certificate PDF is rendered client-side and supplied as standard base64.
type SendRequest struct {
	AccessToken    string `json:"access_token"`
	CertificatePDF string `json:"certificate_pdf"`

	pdf []byte
}

func (r *SendRequest) Validate() error {
	if r.CertificatePDF == "" {
		return domainerrors.New(domainerrors.CodeInvalidInput, "certificate_pdf is required")
	}
	pdf, err := base64.StdEncoding.DecodeString(r.CertificatePDF)
	if err != nil {
		return domainerrors.New(domainerrors.CodeInvalidInput, "certificate_pdf must be base64")
	}
	r.pdf = pdf
	return nil
}

// PDF returns the decoded certificate bytes; valid after Validate.
func (r *SendRequest) PDF() []byte { return r.pdf }
