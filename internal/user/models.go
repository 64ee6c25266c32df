// Package user manages pensioner and notary profiles. Profiles feed the
// submission form with defaults; a submitted application snapshots them and
// never reads back, so edits here cannot rewrite history.
package user

import (
	"strings"
	"time"

	"lifecert/pkg/domain"
	domainerrors "lifecert/pkg/domain-errors"
)

// Profile is the stored account record for one actor.
type Profile struct {
	ID        string      `json:"id"`
	DisplayID string      `json:"display_id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	Avatar    string      `json:"avatar,omitempty"`

	// Personal details
	FatherHusbandName string `json:"father_husband_name,omitempty"`
	DateOfBirth       string `json:"date_of_birth,omitempty"`
	PlaceOfBirth      string `json:"place_of_birth,omitempty"`
	Nationality       string `json:"nationality,omitempty"`

	// Service details
	ServiceNumber string `json:"service_number,omitempty"`
	Rank          string `json:"rank,omitempty"`
	PPONumber     string `json:"ppo_number,omitempty"`

	// Passport details
	PassportNumber     string `json:"passport_number,omitempty"`
	PassportIssueDate  string `json:"passport_issue_date,omitempty"`
	PassportExpiryDate string `json:"passport_expiry_date,omitempty"`
	PassportAuthority  string `json:"passport_authority,omitempty"`

	// Contact details
	OverseasAddress   string `json:"overseas_address,omitempty"`
	IndianAddress     string `json:"indian_address,omitempty"`
	PhoneNumber       string `json:"phone_number,omitempty"`
	IndianPhoneNumber string `json:"indian_phone_number,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy callers may mutate freely.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}

// Patch is a partial profile update. Only non-nil fields are applied, and the
// set of patchable fields is closed: identity fields (id, display id, role)
// have no patch slot, so requests cannot touch them by construction.
type Patch struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Avatar *string `json:"avatar,omitempty"`

	FatherHusbandName *string `json:"father_husband_name,omitempty"`
	DateOfBirth       *string `json:"date_of_birth,omitempty"`
	PlaceOfBirth      *string `json:"place_of_birth,omitempty"`
	Nationality       *string `json:"nationality,omitempty"`

	ServiceNumber *string `json:"service_number,omitempty"`
	Rank          *string `json:"rank,omitempty"`
	PPONumber     *string `json:"ppo_number,omitempty"`

	PassportNumber     *string `json:"passport_number,omitempty"`
	PassportIssueDate  *string `json:"passport_issue_date,omitempty"`
	PassportExpiryDate *string `json:"passport_expiry_date,omitempty"`
	PassportAuthority  *string `json:"passport_authority,omitempty"`

	OverseasAddress   *string `json:"overseas_address,omitempty"`
	IndianAddress     *string `json:"indian_address,omitempty"`
	PhoneNumber       *string `json:"phone_number,omitempty"`
	IndianPhoneNumber *string `json:"indian_phone_number,omitempty"`
}

// IsZero reports whether the patch sets nothing.
func (p Patch) IsZero() bool {
	return p == Patch{}
}

// Validate rejects patches that would corrupt the profile.
func (p Patch) Validate() error {
	if p.IsZero() {
		return domainerrors.New(domainerrors.CodeInvalidInput, "empty patch")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return domainerrors.New(domainerrors.CodeInvalidInput, "name must not be blank")
	}
	if p.Email != nil && !strings.Contains(*p.Email, "@") {
		return domainerrors.New(domainerrors.CodeInvalidInput, "email must be a valid address")
	}
	for field, value := range map[string]*string{
		"date_of_birth":        p.DateOfBirth,
		"passport_issue_date":  p.PassportIssueDate,
		"passport_expiry_date": p.PassportExpiryDate,
	} {
		if value == nil || *value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", *value); err != nil {
			return domainerrors.New(domainerrors.CodeInvalidInput, field+" must be YYYY-MM-DD")
		}
	}
	return nil
}

// Apply writes the set fields onto the profile.
func (p Patch) Apply(profile *Profile) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&profile.Name, p.Name)
	set(&profile.Email, p.Email)
	set(&profile.Avatar, p.Avatar)
	set(&profile.FatherHusbandName, p.FatherHusbandName)
	set(&profile.DateOfBirth, p.DateOfBirth)
	set(&profile.PlaceOfBirth, p.PlaceOfBirth)
	set(&profile.Nationality, p.Nationality)
	set(&profile.ServiceNumber, p.ServiceNumber)
	set(&profile.Rank, p.Rank)
	set(&profile.PPONumber, p.PPONumber)
	set(&profile.PassportNumber, p.PassportNumber)
	set(&profile.PassportIssueDate, p.PassportIssueDate)
	set(&profile.PassportExpiryDate, p.PassportExpiryDate)
	set(&profile.PassportAuthority, p.PassportAuthority)
	set(&profile.OverseasAddress, p.OverseasAddress)
	set(&profile.IndianAddress, p.IndianAddress)
	set(&profile.PhoneNumber, p.PhoneNumber)
	set(&profile.IndianPhoneNumber, p.IndianPhoneNumber)
}
