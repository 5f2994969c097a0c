package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs for requests and responses

// LoanTerms are the inputs of a disbursement.
type LoanTerms struct {
	ClientID                   uuid.UUID        `json:"client_id" validate:"required"`
	Code                       string           `json:"code,omitempty" validate:"omitempty,max=50"`
	Currency                   string           `json:"currency,omitempty" validate:"omitempty,len=3"`
	Amount                     decimal.Decimal  `json:"amount" validate:"decimal_gt=0"`
	InterestRatePercentage     decimal.Decimal  `json:"interest_rate_percentage" validate:"decimal_gte=0"`
	InterestMethod             InterestMethod   `json:"interest_method,omitempty" validate:"omitempty,oneof=flat declining_balance"`
	TotalInstallments          int              `json:"total_installments" validate:"gt=0"`
	PaymentFrequency           PaymentFrequency `json:"payment_frequency" validate:"required,oneof=weekly biweekly monthly bimonthly trimesterly semiannual annual"`
	DisbursementDate           time.Time        `json:"disbursement_date" validate:"required"`
	FirstDueDate               *time.Time       `json:"first_due_date,omitempty"`
	GraceDays                  int              `json:"grace_days" validate:"gte=0"`
	ArrearsRatePercentage      decimal.Decimal  `json:"arrears_rate_percentage" validate:"decimal_gte=0"`
	ArrearsPeriodDays          int              `json:"arrears_period_days,omitempty" validate:"gte=0"`
	OtherChargesPerInstallment decimal.Decimal  `json:"other_charges_per_installment" validate:"decimal_gte=0"`
	AllowsPrincipalPayment     *bool            `json:"allows_principal_payment,omitempty"`
	AllowsEarlySettlement      *bool            `json:"allows_early_settlement,omitempty"`
	EarlySettlementDiscount    decimal.Decimal  `json:"early_settlement_discount" validate:"decimal_gte=0,decimal_lte=100"`
	Notes                      string           `json:"notes,omitempty"`
}

type CreateLoanResponse struct {
	Loan     *Loan          `json:"loan"`
	Schedule []*Installment `json:"schedule"`
}

// RestructureTerms describe the replacement loan. Arrears and early-payment settings
// are inherited from the loan being restructured.
type RestructureTerms struct {
	InterestRatePercentage decimal.Decimal  `json:"interest_rate_percentage" validate:"decimal_gte=0"`
	InterestMethod         InterestMethod   `json:"interest_method,omitempty" validate:"omitempty,oneof=flat declining_balance"`
	TotalInstallments      int              `json:"total_installments" validate:"gt=0"`
	PaymentFrequency       PaymentFrequency `json:"payment_frequency" validate:"required,oneof=weekly biweekly monthly bimonthly trimesterly semiannual annual"`
	StartDate              *time.Time       `json:"start_date,omitempty"`
	FirstDueDate           *time.Time       `json:"first_due_date,omitempty"`
	Notes                  string           `json:"notes,omitempty"`
}

type RecordPaymentRequest struct {
	LoanID            uuid.UUID             `json:"-"`
	InstallmentID     *uuid.UUID            `json:"-"`
	Amount            decimal.Decimal       `json:"amount" validate:"decimal_gt=0"`
	Classification    PaymentClassification `json:"payment_type" validate:"required,oneof=regular_installment principal_payment interest_payment arrears_payment total_settlement extraordinary_payment"`
	Method            PaymentMethod         `json:"payment_method" validate:"required,oneof=cash transfer check card deposit mobile_payment other"`
	PaymentDate       *time.Time            `json:"payment_date,omitempty"`
	RequestID         string                `json:"request_id,omitempty" validate:"omitempty,max=100"`
	ExternalReference string                `json:"external_reference,omitempty" validate:"omitempty,max=100"`
	Notes             string                `json:"notes,omitempty"`
	Pending           bool                  `json:"pending,omitempty"`
}

type ReversePaymentRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type RescheduleRequest struct {
	NewDueDate time.Time `json:"new_due_date" validate:"required"`
	Notes      string    `json:"notes,omitempty"`
}

type ForgiveRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type WriteOffRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type CancelPaymentRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type StatusChangeRequest struct {
	Status string `json:"status" validate:"required"`
}

type RegisterClientRequest struct {
	FullName       string          `json:"full_name" validate:"required,max=200"`
	DocumentType   DocumentType    `json:"document_type" validate:"required,oneof=citizenship_id_card identity_card foreigner_id_card passport tax_identification_number civil_registration unique_personal_identification_number national_identity_document special_stay_permit temporary_protection_permit other"`
	DocumentNumber string          `json:"document_number" validate:"required,max=50"`
	Email          string          `json:"email,omitempty" validate:"omitempty,email,max=100"`
	Phone          string          `json:"phone,omitempty" validate:"omitempty,max=20"`
	MonthlyIncome  decimal.Decimal `json:"monthly_income" validate:"decimal_gte=0"`
	MaxCreditLimit decimal.Decimal `json:"max_credit_limit" validate:"decimal_gte=0"`
}

type ClientStatusRequest struct {
	Status ClientStatus `json:"status" validate:"required,oneof=active inactive blocked"`
}

// ClientCreditReport compares a client's stored used credit with the sum of its loans.
type ClientCreditReport struct {
	ClientID        uuid.UUID       `json:"client_id"`
	UsedCreditLimit decimal.Decimal `json:"used_credit_limit"`
	OpenPrincipal   decimal.Decimal `json:"open_principal"`
	Consistent      bool            `json:"consistent"`
	OverLimit       bool            `json:"over_limit"`
}
