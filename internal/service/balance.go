package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/credit-engine/internal/allocation"
	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/internal/repository"
	customError "github.com/segyhp/credit-engine/pkg/errors"
	"github.com/segyhp/credit-engine/pkg/utils"
)

// GetLoanBalanceSnapshot returns the loan balances with arrears accrued as of asOf
// (now when nil). A preview reads without locking, leaves the stored loan untouched
// and may be served from the snapshot cache; materialize persists the accrual and
// needs an actor.
func (s *LoanService) GetLoanBalanceSnapshot(ctx context.Context, loanID uuid.UUID, asOf *time.Time, materialize bool, actor string) (*domain.BalanceSnapshot, error) {
	now := s.now()
	at := now
	if asOf != nil {
		at = asOf.UTC()
	}
	if !materialize {
		return s.previewSnapshot(ctx, loanID, at)
	}

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if utils.TruncateToDate(at).After(utils.TruncateToDate(now)) {
		return nil, customError.WrapInvalidInput("cannot materialize balances for a future date")
	}

	var snap *domain.BalanceSnapshot
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		work, err := s.loadWorking(ctx, tx, loanID, at)
		if err != nil {
			return err
		}
		snap = domain.SnapshotOf(work.Loan, at, true)
		touchLoan(work.Loan, actor, now)
		return repository.SaveAggregate(ctx, tx, work)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, loanID)
	s.log.WithFields(logrus.Fields{
		"loan_id": loanID,
		"as_of":   at.Format("2006-01-02"),
		"arrears": snap.Arrears.String(),
		"actor":   actor,
	}).Info("balances materialized")
	return snap, nil
}

func (s *LoanService) previewSnapshot(ctx context.Context, loanID uuid.UUID, at time.Time) (*domain.BalanceSnapshot, error) {
	snap, ok, err := s.snapshots.Get(ctx, loanID, at)
	if err != nil {
		s.log.WithError(err).WithField("loan_id", loanID).Warn("balance snapshot cache read failed")
	}
	if ok {
		return snap, nil
	}

	work, err := s.preview(ctx, loanID, at)
	if err != nil {
		return nil, err
	}
	snap = domain.SnapshotOf(work.Loan, at, false)

	if err := s.snapshots.Set(ctx, snap); err != nil {
		s.log.WithError(err).WithField("loan_id", loanID).Warn("balance snapshot cache write failed")
	}
	return snap, nil
}

// SettlementQuote returns the early-settlement payoff of a loan as of now.
func (s *LoanService) SettlementQuote(ctx context.Context, loanID uuid.UUID) (*allocation.Quote, error) {
	work, err := s.preview(ctx, loanID, s.now())
	if err != nil {
		return nil, err
	}
	if !work.Loan.Status.Open() {
		return nil, customError.WrapInvalidState(work.Loan.ID, "loan", string(work.Loan.Status))
	}
	if !work.Loan.AllowsEarlySettlement {
		return nil, customError.WrapDisallowedOperation(work.Loan.ID, string(domain.PaymentTotalSettlement))
	}
	quote := allocation.SettlementQuote(work)
	return &quote, nil
}

// preview reads the loan aggregate from one snapshot, without locks, and returns a
// copy with arrears accrued as of asOf. Nothing is written back.
func (s *LoanService) preview(ctx context.Context, loanID uuid.UUID, asOf time.Time) (*domain.LoanAggregate, error) {
	var work *domain.LoanAggregate
	err := s.store.ReadInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		agg, err := repository.ReadAggregate(ctx, tx, loanID)
		if err != nil {
			return err
		}
		work = agg.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.accrue(work, asOf); err != nil {
		return nil, err
	}
	return work, nil
}

// SweepReport summarizes one portfolio sweep.
type SweepReport struct {
	AsOf                time.Time     `json:"as_of"`
	LoansScanned        int           `json:"loans_scanned"`
	LoansOverdue        int           `json:"loans_overdue"`
	LoansFailed         int           `json:"loans_failed"`
	ClientsScanned      int           `json:"clients_scanned"`
	ClientsInconsistent int           `json:"clients_inconsistent"`
	ClientsOverLimit    int           `json:"clients_over_limit"`
	InconsistentClients []uuid.UUID   `json:"inconsistent_clients,omitempty"`
	Duration            time.Duration `json:"duration"`
}

// SweepPortfolio previews the balance of every open loan as of asOf, warming the
// snapshot cache, and audits every client's used credit. Nothing is written.
func (s *LoanService) SweepPortfolio(ctx context.Context, asOf time.Time) (*SweepReport, error) {
	started := time.Now()
	report := &SweepReport{AsOf: asOf.UTC()}

	loans, err := s.store.Loans().ListByStatus(ctx, openStatuses...)
	if err != nil {
		return nil, err
	}
	for _, loan := range loans {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.LoansScanned++
		snap, err := s.previewSnapshot(ctx, loan.ID, report.AsOf)
		if err != nil {
			report.LoansFailed++
			s.log.WithError(err).WithField("loan_id", loan.ID).Error("balance preview failed")
			continue
		}
		if snap.Status == domain.LoanStatusOverdue {
			report.LoansOverdue++
		}
	}

	clients, err := s.store.Clients().List(ctx)
	if err != nil {
		return report, err
	}
	for _, client := range clients {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.ClientsScanned++
		credit, err := s.VerifyClientCredit(ctx, client.ID)
		if err != nil {
			s.log.WithError(err).WithField("client_id", client.ID).Error("credit audit failed")
			continue
		}
		if !credit.Consistent {
			report.ClientsInconsistent++
			report.InconsistentClients = append(report.InconsistentClients, client.ID)
			s.log.WithFields(logrus.Fields{
				"client_id":      client.ID,
				"used_credit":    credit.UsedCreditLimit.String(),
				"open_principal": credit.OpenPrincipal.String(),
			}).Error("client used credit does not match open principal")
		}
		if credit.OverLimit {
			report.ClientsOverLimit++
			s.log.WithFields(logrus.Fields{
				"client_id":   client.ID,
				"used_credit": credit.UsedCreditLimit.String(),
			}).Warn("client used credit exceeds its limit")
		}
	}

	report.Duration = time.Since(started)
	s.log.WithFields(logrus.Fields{
		"as_of":                report.AsOf.Format("2006-01-02"),
		"loans_scanned":        report.LoansScanned,
		"loans_overdue":        report.LoansOverdue,
		"loans_failed":         report.LoansFailed,
		"clients_scanned":      report.ClientsScanned,
		"clients_inconsistent": report.ClientsInconsistent,
		"clients_over_limit":   report.ClientsOverLimit,
		"duration":             report.Duration.String(),
	}).Info("portfolio sweep finished")

	return report, nil
}
