package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/internal/ledger"
	"github.com/segyhp/credit-engine/internal/repository"
	customError "github.com/segyhp/credit-engine/pkg/errors"
	"github.com/segyhp/credit-engine/pkg/utils"
	"github.com/segyhp/credit-engine/pkg/validation"
)

// RescheduleInstallment voids an open installment and appends a replacement due on
// the new date. The replacement carries the unpaid principal, interest and other
// charges; unpaid arrears are folded into its other charges.
func (s *LoanService) RescheduleInstallment(ctx context.Context, installmentID uuid.UUID, req *domain.RescheduleRequest, actor string) (*domain.Installment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, customError.WrapInvalidScheduleInput(validation.Describe(err))
	}
	now := s.now()
	newDue := utils.TruncateToDate(req.NewDueDate)
	if !newDue.After(utils.TruncateToDate(now)) {
		return nil, customError.WrapInvalidScheduleInput("new due date must be after today")
	}

	stored, err := s.store.Loans().GetInstallment(ctx, installmentID)
	if err != nil {
		return nil, err
	}

	var out *domain.Installment

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		work, err := s.loadWorking(ctx, tx, stored.LoanID, now)
		if err != nil {
			return err
		}
		if !work.Loan.Status.Open() {
			return customError.WrapInvalidState(work.Loan.ID, "loan", string(work.Loan.Status))
		}
		old := work.Installment(installmentID)
		if old == nil {
			return customError.WrapNotFound("installment", installmentID)
		}
		if !old.Status.Open() {
			return customError.WrapInvalidState(old.ID, "installment", string(old.Status))
		}

		before := work.Loan.CreditExposure()
		origID := old.ID
		replacement := &domain.Installment{
			ID:                     uuid.New(),
			LoanID:                 old.LoanID,
			InstallmentNumber:      work.NextInstallmentNumber(),
			DueDate:                newDue,
			OriginalDueDate:        old.OriginalDueDate,
			PrincipalAmount:        old.PrincipalDue(),
			InterestAmount:         old.InterestDue(),
			OtherChargesAmount:     old.OtherChargesDue().Add(old.ArrearsDue()),
			PrincipalPaidAmount:    decimal.Zero,
			InterestPaidAmount:     decimal.Zero,
			OtherChargesPaidAmount: decimal.Zero,
			ArrearsAmount:          decimal.Zero,
			ArrearsPaidAmount:      decimal.Zero,
			Status:                 domain.InstallmentStatusPending,
			WasRescheduled:         true,
			OriginalInstallmentID:  &origID,
			Notes:                  req.Notes,
			CreatedBy:              actor,
			UpdatedBy:              actor,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		if replacement.OriginalDueDate.IsZero() {
			replacement.OriginalDueDate = old.DueDate
		}
		replacement.Recompute()

		if err := old.SetStatus(domain.InstallmentStatusRescheduled, domain.CauseLifecycle, now); err != nil {
			return err
		}
		old.Notes = appendNote(old.Notes, "rescheduled as installment "+replacement.ID.String())
		touchInstallment(old, actor, now)

		work.Installments = append(work.Installments, replacement)
		if err := ledger.Rebalance(work, before); err != nil {
			return err
		}
		if err := work.SyncStatuses(domain.CauseLifecycle, now); err != nil {
			return err
		}
		touchLoan(work.Loan, actor, now)

		if err := tx.Loans().CreateSchedule(ctx, []*domain.Installment{replacement}); err != nil {
			return err
		}
		out = replacement
		return repository.SaveAggregate(ctx, tx, work)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, out.LoanID)
	s.log.WithFields(logrus.Fields{
		"loan_id":         out.LoanID,
		"installment_id":  installmentID,
		"replacement_id":  out.ID,
		"new_due_date":    out.DueDate.Format("2006-01-02"),
		"carried_balance": out.TotalAmount.String(),
		"actor":           actor,
	}).Info("installment rescheduled")

	return out, nil
}

// ForgiveInstallment waives the pending balance of an open installment. Forgiven
// principal no longer counts against the client's credit.
func (s *LoanService) ForgiveInstallment(ctx context.Context, installmentID uuid.UUID, reason, actor string) (*domain.Installment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, customError.WrapInvalidInput("a forgiveness reason is required")
	}
	stored, err := s.store.Loans().GetInstallment(ctx, installmentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var out *domain.Installment

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		work, err := s.loadWorking(ctx, tx, stored.LoanID, now)
		if err != nil {
			return err
		}
		inst := work.Installment(installmentID)
		if inst == nil {
			return customError.WrapNotFound("installment", installmentID)
		}
		if !work.Loan.Status.Open() {
			return customError.WrapInvalidState(work.Loan.ID, "loan", string(work.Loan.Status))
		}
		if !inst.Status.Open() {
			return customError.WrapInvalidState(inst.ID, "installment", string(inst.Status))
		}

		before := work.Loan.CreditExposure()
		if err := inst.SetStatus(domain.InstallmentStatusForgiven, domain.CauseLifecycle, now); err != nil {
			return err
		}
		inst.Notes = appendNote(inst.Notes, "forgiven: "+reason)
		touchInstallment(inst, actor, now)

		if err := ledger.Rebalance(work, before); err != nil {
			return err
		}
		// forgiving the last open installment settles the loan
		before = work.Loan.CreditExposure()
		if err := work.SyncStatuses(domain.CauseLifecycle, now); err != nil {
			return err
		}
		if err := ledger.Rebalance(work, before); err != nil {
			return err
		}
		touchLoan(work.Loan, actor, now)
		touchClient(work.Client, actor, now)

		out = inst
		return repository.SaveAggregate(ctx, tx, work)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, out.LoanID)
	s.log.WithFields(logrus.Fields{
		"loan_id":        out.LoanID,
		"installment_id": out.ID,
		"actor":          actor,
	}).Warn("installment forgiven")

	return out, nil
}
