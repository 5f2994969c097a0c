package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Loan represents a credit extended to one client
type Loan struct {
	ID                      uuid.UUID        `json:"id" db:"id"`
	Code                    string           `json:"code" db:"code"`
	ClientID                uuid.UUID        `json:"client_id" db:"client_id"`
	Currency                string           `json:"currency" db:"currency"`
	OriginalAmount          decimal.Decimal  `json:"original_amount" db:"original_amount"`
	InterestRatePercentage  decimal.Decimal  `json:"interest_rate_percentage" db:"interest_rate_percentage"`
	InterestMethod          InterestMethod   `json:"interest_method" db:"interest_method"`
	TotalInstallments       int              `json:"total_installments" db:"total_installments"`
	PaymentFrequency        PaymentFrequency `json:"payment_frequency" db:"payment_frequency"`
	DisbursementDate        time.Time        `json:"disbursement_date" db:"disbursement_date"`
	FirstDueDate            time.Time        `json:"first_due_date" db:"first_due_date"`
	PrincipalBalance        decimal.Decimal  `json:"principal_balance" db:"principal_balance"`
	InterestBalance         decimal.Decimal  `json:"interest_balance" db:"interest_balance"`
	OtherChargesBalance     decimal.Decimal  `json:"other_charges_balance" db:"other_charges_balance"`
	ArrearsBalance          decimal.Decimal  `json:"arrears_balance" db:"arrears_balance"`
	TotalBalance            decimal.Decimal  `json:"total_balance" db:"total_balance"`
	TotalPaidAmount         decimal.Decimal  `json:"total_paid_amount" db:"total_paid_amount"`
	Status                  LoanStatus       `json:"status" db:"status"`
	GraceDays               int              `json:"grace_days" db:"grace_days"`
	ArrearsRatePercentage   decimal.Decimal  `json:"arrears_rate_percentage" db:"arrears_rate_percentage"`
	ArrearsPeriodDays       int              `json:"arrears_period_days" db:"arrears_period_days"`
	AllowsPrincipalPayment  bool             `json:"allows_principal_payment" db:"allows_principal_payment"`
	AllowsEarlySettlement   bool             `json:"allows_early_settlement" db:"allows_early_settlement"`
	EarlySettlementDiscount decimal.Decimal  `json:"early_settlement_discount" db:"early_settlement_discount"`
	SettlementDate          *time.Time       `json:"settlement_date,omitempty" db:"settlement_date"`
	OriginalLoanID          *uuid.UUID       `json:"original_loan_id,omitempty" db:"original_loan_id"`
	Notes                   string           `json:"notes,omitempty" db:"notes"`
	CreatedBy               string           `json:"created_by" db:"created_by"`
	UpdatedBy               string           `json:"updated_by" db:"updated_by"`
	CreatedAt               time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at" db:"updated_at"`
}

// CreditExposure is the amount of client credit this loan currently occupies.
func (l *Loan) CreditExposure() decimal.Decimal {
	if !l.Status.CountsAgainstCredit() {
		return decimal.Zero
	}
	return l.PrincipalBalance
}

func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	cp := *l
	if l.SettlementDate != nil {
		t := *l.SettlementDate
		cp.SettlementDate = &t
	}
	if l.OriginalLoanID != nil {
		id := *l.OriginalLoanID
		cp.OriginalLoanID = &id
	}
	return &cp
}

// BalanceSnapshot is a point-in-time view of a loan's outstanding components.
type BalanceSnapshot struct {
	LoanID       uuid.UUID       `json:"loan_id"`
	AsOf         time.Time       `json:"as_of"`
	Status       LoanStatus      `json:"status"`
	Principal    decimal.Decimal `json:"principal"`
	Interest     decimal.Decimal `json:"interest"`
	OtherCharges decimal.Decimal `json:"other_charges"`
	Arrears      decimal.Decimal `json:"arrears"`
	Total        decimal.Decimal `json:"total"`
	Materialized bool            `json:"materialized"`
}

// SnapshotOf reads the balance fields of a loan.
func SnapshotOf(l *Loan, asOf time.Time, materialized bool) *BalanceSnapshot {
	return &BalanceSnapshot{
		LoanID:       l.ID,
		AsOf:         asOf,
		Status:       l.Status,
		Principal:    l.PrincipalBalance,
		Interest:     l.InterestBalance,
		OtherCharges: l.OtherChargesBalance,
		Arrears:      l.ArrearsBalance,
		Total:        l.TotalBalance,
		Materialized: materialized,
	}
}

// SetStatus moves the loan through the state machine and keeps settlement_date in
// step with the paid state.
func (l *Loan) SetStatus(to LoanStatus, cause Cause, at time.Time) error {
	if err := CheckLoanTransition(l.ID, l.Status, to, cause); err != nil {
		return err
	}
	if to == LoanStatusPaid && l.Status != LoanStatusPaid {
		d := at.UTC()
		l.SettlementDate = &d
	}
	if to != LoanStatusPaid {
		l.SettlementDate = nil
	}
	l.Status = to
	return nil
}
