package domain

import (
	"github.com/google/uuid"

	customError "github.com/segyhp/credit-engine/pkg/errors"
)

// Cause identifies which component drives a status change. Transition tables are
// keyed by cause so that, for example, only a reversal can re-open a paid loan.
type Cause string

const (
	CauseLifecycle  Cause = "lifecycle"  // disbursement, settlement, reschedule, restructure, write-off, forgiveness
	CauseAllocation Cause = "allocation" // payment applied
	CauseAccrual    Cause = "accrual"    // arrears recomputed
	CauseReversal   Cause = "reversal"   // payment undone
	CauseExternal   Cause = "external"   // direct write from outside the engine; never allowed
)

type LoanStatus string

const (
	LoanStatusDraft         LoanStatus = "draft"
	LoanStatusActive        LoanStatus = "active"
	LoanStatusPartiallyPaid LoanStatus = "partially_paid"
	LoanStatusPaid          LoanStatus = "paid"
	LoanStatusOverdue       LoanStatus = "overdue"
	LoanStatusRestructured  LoanStatus = "restructured"
	LoanStatusWrittenOff    LoanStatus = "written_off"
)

type InstallmentStatus string

const (
	InstallmentStatusPending       InstallmentStatus = "pending"
	InstallmentStatusPartiallyPaid InstallmentStatus = "partially_paid"
	InstallmentStatusPaid          InstallmentStatus = "paid"
	InstallmentStatusOverdue       InstallmentStatus = "overdue"
	InstallmentStatusRescheduled   InstallmentStatus = "rescheduled"
	InstallmentStatusForgiven      InstallmentStatus = "forgiven"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusReversed  PaymentStatus = "reversed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusDraft, LoanStatusActive, LoanStatusPartiallyPaid, LoanStatusPaid,
		LoanStatusOverdue, LoanStatusRestructured, LoanStatusWrittenOff:
		return true
	}
	return false
}

// Terminal reports whether no further lifecycle action is possible. A paid loan can
// still be re-opened by reversing one of its payments.
func (s LoanStatus) Terminal() bool {
	switch s {
	case LoanStatusPaid, LoanStatusWrittenOff, LoanStatusRestructured:
		return true
	}
	return false
}

// Open reports whether the loan still carries an outstanding obligation.
func (s LoanStatus) Open() bool {
	switch s {
	case LoanStatusActive, LoanStatusPartiallyPaid, LoanStatusOverdue:
		return true
	}
	return false
}

// CountsAgainstCredit reports whether the loan's principal balance occupies client
// credit. A paid loan has no principal left but still counts, so that reversing one
// of its payments takes the credit back.
func (s LoanStatus) CountsAgainstCredit() bool {
	return s.Open() || s == LoanStatusPaid
}

func (s InstallmentStatus) Valid() bool {
	switch s {
	case InstallmentStatusPending, InstallmentStatusPartiallyPaid, InstallmentStatusPaid,
		InstallmentStatusOverdue, InstallmentStatusRescheduled, InstallmentStatusForgiven:
		return true
	}
	return false
}

func (s InstallmentStatus) Terminal() bool {
	switch s {
	case InstallmentStatusPaid, InstallmentStatusForgiven, InstallmentStatusRescheduled:
		return true
	}
	return false
}

// Voided installments no longer contribute to the loan balance.
func (s InstallmentStatus) Voided() bool {
	return s == InstallmentStatusRescheduled || s == InstallmentStatusForgiven
}

// Open reports whether the installment can still receive payments or accrue arrears.
func (s InstallmentStatus) Open() bool {
	switch s {
	case InstallmentStatusPending, InstallmentStatusPartiallyPaid, InstallmentStatusOverdue:
		return true
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusConfirmed, PaymentStatusReversed, PaymentStatusCancelled:
		return true
	}
	return false
}

func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusReversed || s == PaymentStatusCancelled
}

type edge[S ~string] struct {
	from, to S
}

// machine is a transition table: every legal (from, to) edge lists the causes that may drive it.
type machine[S ~string] struct {
	kind  string
	edges map[edge[S]][]Cause
}

func (m machine[S]) allows(from, to S, cause Cause) bool {
	if cause == CauseExternal {
		return false
	}
	for _, c := range m.edges[edge[S]{from, to}] {
		if c == cause {
			return true
		}
	}
	return false
}

func (m machine[S]) check(id uuid.UUID, from, to S, cause Cause) error {
	if from == to && cause != CauseExternal {
		return nil
	}
	if !m.allows(from, to, cause) {
		return customError.WrapIllegalTransition(id, m.kind, string(from), string(to))
	}
	return nil
}

var (
	anyDriver   = []Cause{CauseLifecycle, CauseAllocation, CauseAccrual, CauseReversal}
	settle      = []Cause{CauseAllocation, CauseLifecycle}
	lifecycle   = []Cause{CauseLifecycle}
	reversal    = []Cause{CauseReversal}
	allocation  = []Cause{CauseAllocation}
	accrual     = []Cause{CauseAccrual}
	accrualBack = []Cause{CauseAccrual, CauseReversal, CauseLifecycle}
)

var loanMachine = machine[LoanStatus]{
	kind: "loan",
	edges: map[edge[LoanStatus]][]Cause{
		{LoanStatusDraft, LoanStatusActive}: lifecycle,

		{LoanStatusActive, LoanStatusPartiallyPaid}:       anyDriver,
		{LoanStatusActive, LoanStatusOverdue}:             anyDriver,
		{LoanStatusActive, LoanStatusPaid}:                settle,
		{LoanStatusActive, LoanStatusRestructured}:        lifecycle,
		{LoanStatusActive, LoanStatusWrittenOff}:          lifecycle,
		{LoanStatusPartiallyPaid, LoanStatusActive}:       anyDriver,
		{LoanStatusPartiallyPaid, LoanStatusOverdue}:      anyDriver,
		{LoanStatusPartiallyPaid, LoanStatusPaid}:         settle,
		{LoanStatusPartiallyPaid, LoanStatusRestructured}: lifecycle,
		{LoanStatusPartiallyPaid, LoanStatusWrittenOff}:   lifecycle,
		{LoanStatusOverdue, LoanStatusActive}:             anyDriver,
		{LoanStatusOverdue, LoanStatusPartiallyPaid}:      anyDriver,
		{LoanStatusOverdue, LoanStatusPaid}:               settle,
		{LoanStatusOverdue, LoanStatusRestructured}:       lifecycle,
		{LoanStatusOverdue, LoanStatusWrittenOff}:         lifecycle,
		{LoanStatusPaid, LoanStatusActive}:                reversal,
		{LoanStatusPaid, LoanStatusPartiallyPaid}:         reversal,
		{LoanStatusPaid, LoanStatusOverdue}:               reversal,
	},
}

var installmentMachine = machine[InstallmentStatus]{
	kind: "installment",
	edges: map[edge[InstallmentStatus]][]Cause{
		{InstallmentStatusPending, InstallmentStatusPartiallyPaid}: allocation,
		{InstallmentStatusPending, InstallmentStatusPaid}:          settle,
		{InstallmentStatusPending, InstallmentStatusOverdue}:       accrual,
		{InstallmentStatusPending, InstallmentStatusRescheduled}:   lifecycle,
		{InstallmentStatusPending, InstallmentStatusForgiven}:      lifecycle,

		{InstallmentStatusPartiallyPaid, InstallmentStatusPending}:     reversal,
		{InstallmentStatusPartiallyPaid, InstallmentStatusPaid}:        settle,
		{InstallmentStatusPartiallyPaid, InstallmentStatusOverdue}:     []Cause{CauseAccrual, CauseReversal},
		{InstallmentStatusPartiallyPaid, InstallmentStatusRescheduled}: lifecycle,
		{InstallmentStatusPartiallyPaid, InstallmentStatusForgiven}:    lifecycle,

		{InstallmentStatusOverdue, InstallmentStatusPending}:       accrualBack,
		{InstallmentStatusOverdue, InstallmentStatusPartiallyPaid}: accrualBack,
		{InstallmentStatusOverdue, InstallmentStatusPaid}:          settle,
		{InstallmentStatusOverdue, InstallmentStatusRescheduled}:   lifecycle,
		{InstallmentStatusOverdue, InstallmentStatusForgiven}:      lifecycle,

		{InstallmentStatusPaid, InstallmentStatusPending}:       reversal,
		{InstallmentStatusPaid, InstallmentStatusPartiallyPaid}: reversal,
		{InstallmentStatusPaid, InstallmentStatusOverdue}:       reversal,
	},
}

var paymentMachine = machine[PaymentStatus]{
	kind: "payment",
	edges: map[edge[PaymentStatus]][]Cause{
		{PaymentStatusPending, PaymentStatusConfirmed}:  settle,
		{PaymentStatusPending, PaymentStatusCancelled}:  lifecycle,
		{PaymentStatusConfirmed, PaymentStatusReversed}: reversal,
	},
}

// CheckLoanTransition returns IllegalTransition unless cause may move a loan from -> to.
func CheckLoanTransition(id uuid.UUID, from, to LoanStatus, cause Cause) error {
	return loanMachine.check(id, from, to, cause)
}

func CheckInstallmentTransition(id uuid.UUID, from, to InstallmentStatus, cause Cause) error {
	return installmentMachine.check(id, from, to, cause)
}

func CheckPaymentTransition(id uuid.UUID, from, to PaymentStatus, cause Cause) error {
	return paymentMachine.check(id, from, to, cause)
}
