package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/credit-engine/internal/allocation"
	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/internal/repository"
	customError "github.com/segyhp/credit-engine/pkg/errors"
	"github.com/segyhp/credit-engine/pkg/utils"
	"github.com/segyhp/credit-engine/pkg/validation"
)

// RecordPayment accrues arrears up to the payment date and distributes the payment
// over the loan. A request id that was already recorded is rejected with
// DuplicateRequest. Pending payments are checked against the current balances but
// only applied when confirmed.
func (s *LoanService) RecordPayment(ctx context.Context, req *domain.RecordPaymentRequest, actor string) (*domain.Payment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, customError.WrapInvalidPaymentAmount(req.Amount.String(), "amount must be greater than 0")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, customError.WrapInvalidInput(validation.Describe(err))
	}

	loanID, err := s.resolveLoan(ctx, req.LoanID, req.InstallmentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	date := now
	if req.PaymentDate != nil {
		date = req.PaymentDate.UTC()
	}
	if utils.TruncateToDate(date).After(utils.TruncateToDate(now)) {
		return nil, customError.WrapInvalidInput("payment date cannot be in the future")
	}

	var out *domain.Payment
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		work, err := s.loadWorking(ctx, tx, loanID, date)
		if err != nil {
			return err
		}
		if utils.TruncateToDate(date).Before(work.Loan.DisbursementDate) {
			return customError.WrapInvalidInput("payment date is before the disbursement date")
		}

		if req.RequestID != "" {
			prev, err := tx.Payments().GetByRequestID(ctx, req.RequestID)
			switch {
			case err == nil:
				return customError.WrapDuplicateRequest(req.RequestID, prev.ID)
			case !customError.Is(err, customError.ErrNotFound):
				return err
			}
		}

		payment := newPayment(work.Loan, req, date, actor, now)
		if req.Pending {
			if _, err := allocation.Plan(work, requestFor(payment)); err != nil {
				return err
			}
			out = payment
			return tx.Payments().Create(ctx, payment)
		}

		if err := applyPayment(work, payment); err != nil {
			return err
		}
		touchLoan(work.Loan, actor, now)
		touchClient(work.Client, actor, now)
		if err := repository.SaveAggregate(ctx, tx, work); err != nil {
			return err
		}
		out = payment
		return tx.Payments().Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	if out.Status == domain.PaymentStatusConfirmed {
		s.invalidate(ctx, loanID)
	}
	s.log.WithFields(logrus.Fields{
		"loan_id":    loanID,
		"payment_id": out.ID,
		"type":       out.PaymentType,
		"amount":     out.TotalAmount.String(),
		"status":     out.Status,
		"actor":      actor,
	}).Info("payment recorded")

	return out, nil
}

// ConfirmPayment applies a pending payment as of its payment date.
func (s *LoanService) ConfirmPayment(ctx context.Context, paymentID uuid.UUID, actor string) (*domain.Payment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	pending, err := s.store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var out *domain.Payment

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		work, err := s.loadWorking(ctx, tx, pending.LoanID, pending.PaymentDate)
		if err != nil {
			return err
		}
		// re-read under the loan lock
		payment, err := tx.Payments().GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != domain.PaymentStatusPending {
			return customError.WrapIllegalTransition(payment.ID, "payment", string(payment.Status), string(domain.PaymentStatusConfirmed))
		}

		if err := applyPayment(work, payment); err != nil {
			return err
		}
		payment.UpdatedBy, payment.UpdatedAt = actor, now
		touchLoan(work.Loan, actor, now)
		touchClient(work.Client, actor, now)
		if err := repository.SaveAggregate(ctx, tx, work); err != nil {
			return err
		}
		out = payment
		return tx.Payments().Update(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, out.LoanID)
	s.log.WithFields(logrus.Fields{"loan_id": out.LoanID, "payment_id": out.ID, "actor": actor}).Info("payment confirmed")
	return out, nil
}

// CancelPayment discards a payment that was never confirmed. Balances are untouched.
func (s *LoanService) CancelPayment(ctx context.Context, paymentID uuid.UUID, reason, actor string) (*domain.Payment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	pending, err := s.store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var out *domain.Payment
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.Loans().GetForUpdate(ctx, pending.LoanID); err != nil {
			return err
		}
		payment, err := tx.Payments().GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != domain.PaymentStatusPending {
			return customError.WrapIllegalTransition(payment.ID, "payment", string(payment.Status), string(domain.PaymentStatusCancelled))
		}
		if err := payment.SetStatus(domain.PaymentStatusCancelled, domain.CauseLifecycle); err != nil {
			return err
		}
		if reason != "" {
			payment.Notes = appendNote(payment.Notes, "cancelled: "+reason)
		}
		payment.UpdatedBy, payment.UpdatedAt = actor, s.now()
		out = payment
		return tx.Payments().Update(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"loan_id": out.LoanID, "payment_id": out.ID, "actor": actor}).Info("payment cancelled")
	return out, nil
}

// ReversePayment undoes a confirmed payment exactly as it was allocated, then
// re-accrues arrears as of now.
func (s *LoanService) ReversePayment(ctx context.Context, paymentID uuid.UUID, reason, actor string) (*domain.Payment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, customError.WrapInvalidInput("a reversal reason is required")
	}
	stored, err := s.store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var out *domain.Payment

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		agg, err := repository.LoadAggregate(ctx, tx, stored.LoanID)
		if err != nil {
			return err
		}
		work := agg.Clone()

		payment, err := tx.Payments().GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := allocation.Reverse(work, payment, now); err != nil {
			return err
		}
		if err := s.accrue(work, now); err != nil {
			return err
		}

		payment.ReversedAt = &now
		payment.ReversalReason = &reason
		payment.ReversedBy = &actor
		payment.UpdatedBy, payment.UpdatedAt = actor, now
		touchLoan(work.Loan, actor, now)
		touchClient(work.Client, actor, now)

		if err := repository.SaveAggregate(ctx, tx, work); err != nil {
			return err
		}
		out = payment
		return tx.Payments().Update(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, out.LoanID)
	s.log.WithFields(logrus.Fields{
		"loan_id":    out.LoanID,
		"payment_id": out.ID,
		"amount":     out.TotalAmount.String(),
		"actor":      actor,
	}).Warn("payment reversed")

	return out, nil
}

func (s *LoanService) ListPayments(ctx context.Context, loanID uuid.UUID) ([]*domain.Payment, error) {
	if _, err := s.store.Loans().GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	return s.store.Payments().GetByLoanID(ctx, loanID)
}

func (s *LoanService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	return s.store.Payments().GetByID(ctx, paymentID)
}

// resolveLoan finds the loan a payment targets. Installment-level payments may omit
// the loan id.
func (s *LoanService) resolveLoan(ctx context.Context, loanID uuid.UUID, installmentID *uuid.UUID) (uuid.UUID, error) {
	if installmentID == nil {
		if loanID == uuid.Nil {
			return uuid.Nil, customError.WrapInvalidInput("a loan or installment id is required")
		}
		return loanID, nil
	}

	inst, err := s.store.Loans().GetInstallment(ctx, *installmentID)
	if err != nil {
		return uuid.Nil, err
	}
	if loanID != uuid.Nil && loanID != inst.LoanID {
		return uuid.Nil, customError.WrapNotFound("installment", *installmentID)
	}
	return inst.LoanID, nil
}

func newPayment(loan *domain.Loan, req *domain.RecordPaymentRequest, date time.Time, actor string, now time.Time) *domain.Payment {
	p := &domain.Payment{
		ID:                        uuid.New(),
		Code:                      newCode("PAG", date),
		ClientID:                  loan.ClientID,
		LoanID:                    loan.ID,
		InstallmentID:             req.InstallmentID,
		PaymentDate:               date,
		TotalAmount:               req.Amount,
		PrincipalAppliedAmount:    decimal.Zero,
		InterestAppliedAmount:     decimal.Zero,
		ArrearsAppliedAmount:      decimal.Zero,
		OtherChargesAppliedAmount: decimal.Zero,
		DiscountAmount:            decimal.Zero,
		PaymentType:               req.Classification,
		PaymentMethod:             req.Method,
		ExternalReference:         req.ExternalReference,
		Status:                    domain.PaymentStatusPending,
		Notes:                     req.Notes,
		CreatedBy:                 actor,
		UpdatedBy:                 actor,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if req.RequestID != "" {
		id := req.RequestID
		p.RequestID = &id
	}
	return p
}

func requestFor(p *domain.Payment) allocation.Request {
	return allocation.Request{
		Classification: p.PaymentType,
		Amount:         p.TotalAmount,
		InstallmentID:  p.InstallmentID,
		Date:           p.PaymentDate,
	}
}

// applyPayment allocates payment on the working aggregate and confirms it.
func applyPayment(work *domain.LoanAggregate, payment *domain.Payment) error {
	res, err := allocation.Apply(work, requestFor(payment))
	if err != nil {
		return err
	}
	payment.SetApplied(res.Applied)
	payment.DiscountAmount = res.Discount
	payment.Allocations = res.Lines
	for _, line := range payment.Allocations {
		line.PaymentID = payment.ID
	}
	return payment.SetStatus(domain.PaymentStatusConfirmed, domain.CauseAllocation)
}
