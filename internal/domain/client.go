package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
	ClientStatusBlocked  ClientStatus = "blocked"
)

func (s ClientStatus) Valid() bool {
	switch s {
	case ClientStatusActive, ClientStatusInactive, ClientStatusBlocked:
		return true
	}
	return false
}

type DocumentType string

const (
	DocumentCitizenshipID     DocumentType = "citizenship_id_card"
	DocumentIdentityCard      DocumentType = "identity_card"
	DocumentForeignerID       DocumentType = "foreigner_id_card"
	DocumentPassport          DocumentType = "passport"
	DocumentTaxID             DocumentType = "tax_identification_number"
	DocumentCivilRegistration DocumentType = "civil_registration"
	DocumentPersonalID        DocumentType = "unique_personal_identification_number"
	DocumentNationalID        DocumentType = "national_identity_document"
	DocumentSpecialStay       DocumentType = "special_stay_permit"
	DocumentTemporaryPermit   DocumentType = "temporary_protection_permit"
	DocumentOther             DocumentType = "other"
)

// Client represents a borrower
type Client struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	FullName             string          `json:"full_name" db:"full_name"`
	DocumentType         DocumentType    `json:"document_type" db:"document_type"`
	DocumentNumber       string          `json:"document_number" db:"document_number"`
	Email                string          `json:"email,omitempty" db:"email"`
	Phone                string          `json:"phone,omitempty" db:"phone"`
	MonthlyIncome        decimal.Decimal `json:"monthly_income" db:"monthly_income"`
	MaxCreditLimit       decimal.Decimal `json:"max_credit_limit" db:"max_credit_limit"`
	UsedCreditLimit      decimal.Decimal `json:"used_credit_limit" db:"used_credit_limit"`
	AvailableCreditLimit decimal.Decimal `json:"available_credit_limit" db:"available_credit_limit"`
	Status               ClientStatus    `json:"status" db:"status"`
	CreatedBy            string          `json:"created_by" db:"created_by"`
	UpdatedBy            string          `json:"updated_by" db:"updated_by"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt            *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

// RecomputeAvailable refreshes the derived available credit.
func (c *Client) RecomputeAvailable() {
	c.AvailableCreditLimit = c.MaxCreditLimit.Sub(c.UsedCreditLimit)
}

func (c *Client) Clone() *Client {
	if c == nil {
		return nil
	}
	cp := *c
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}
