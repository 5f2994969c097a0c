package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/credit-engine/internal/amortization"
	"github.com/segyhp/credit-engine/internal/arrears"
	"github.com/segyhp/credit-engine/internal/cache"
	"github.com/segyhp/credit-engine/internal/config"
	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/internal/ledger"
	"github.com/segyhp/credit-engine/internal/repository"
	customError "github.com/segyhp/credit-engine/pkg/errors"
	"github.com/segyhp/credit-engine/pkg/utils"
	"github.com/segyhp/credit-engine/pkg/validation"
)

// Options tune the service defaults. Zero values fall back to COP, declining
// balance and a 30-day arrears period.
type Options struct {
	DefaultCurrency       string
	DefaultInterestMethod domain.InterestMethod
	ArrearsPeriodDays     int
	Clock                 func() time.Time
}

// OptionsFrom reads the business section of the configuration.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		DefaultCurrency:       cfg.Business.DefaultCurrency,
		DefaultInterestMethod: cfg.DefaultInterestMethod(),
		ArrearsPeriodDays:     cfg.Business.ArrearsPeriodDays,
	}
}

type LoanService struct {
	store     repository.Store
	snapshots cache.SnapshotCache
	arrears   arrears.Calculator
	validate  *validator.Validate
	log       logrus.FieldLogger
	opts      Options
	now       func() time.Time
}

func NewLoanService(store repository.Store, snapshots cache.SnapshotCache, log logrus.FieldLogger, opts Options) *LoanService {
	if snapshots == nil {
		snapshots = cache.Nop{}
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "COP"
	}
	if !opts.DefaultInterestMethod.Valid() {
		opts.DefaultInterestMethod = domain.InterestMethodDecliningBalance
	}
	if opts.ArrearsPeriodDays <= 0 {
		opts.ArrearsPeriodDays = arrears.DefaultPeriodDays
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &LoanService{
		store:     store,
		snapshots: snapshots,
		arrears:   arrears.NewCalculator(opts.ArrearsPeriodDays),
		validate:  validation.New(),
		log:       log,
		opts:      opts,
		now:       func() time.Time { return now().UTC() },
	}
}

var openStatuses = []domain.LoanStatus{
	domain.LoanStatusActive,
	domain.LoanStatusPartiallyPaid,
	domain.LoanStatusOverdue,
}

// DisburseLoan generates the schedule for terms, activates the loan and reserves its
// principal against the client's credit limit.
func (s *LoanService) DisburseLoan(ctx context.Context, terms *domain.LoanTerms, actor string) (*domain.CreateLoanResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(terms); err != nil {
		return nil, customError.WrapInvalidScheduleInput(validation.Describe(err))
	}
	t := s.withDefaults(*terms)

	lines, err := amortization.Generate(amortization.Terms{
		Principal:        t.Amount,
		RatePercentage:   t.InterestRatePercentage,
		Count:            t.TotalInstallments,
		Frequency:        t.PaymentFrequency,
		Method:           t.InterestMethod,
		DisbursementDate: t.DisbursementDate,
		FirstDueDate:     t.FirstDueDate,
		OtherCharges:     t.OtherChargesPerInstallment,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	var out *domain.CreateLoanResponse

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		client, err := tx.Clients().GetForUpdate(ctx, t.ClientID)
		if err != nil {
			return err
		}
		if client.Status != domain.ClientStatusActive {
			return customError.WrapInvalidState(client.ID, "client", string(client.Status))
		}

		loan := newLoan(t, lines, actor, now)
		agg := &domain.LoanAggregate{
			Client:       client,
			Loan:         loan,
			Installments: amortization.Installments(loan, lines, 1, actor, now),
		}
		if err := loan.SetStatus(domain.LoanStatusActive, domain.CauseLifecycle, now); err != nil {
			return err
		}
		if err := ledger.Admit(agg, decimal.Zero); err != nil {
			return err
		}
		touchClient(client, actor, now)

		if err := tx.Loans().Create(ctx, loan); err != nil {
			return err
		}
		if err := tx.Loans().CreateSchedule(ctx, agg.Installments); err != nil {
			return err
		}
		if err := tx.Clients().Update(ctx, client); err != nil {
			return err
		}

		out = &domain.CreateLoanResponse{Loan: loan, Schedule: agg.Installments}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id":   out.Loan.ID,
		"client_id": out.Loan.ClientID,
		"amount":    out.Loan.OriginalAmount.String(),
		"actor":     actor,
	}).Info("loan disbursed")

	return out, nil
}

func (s *LoanService) withDefaults(t domain.LoanTerms) domain.LoanTerms {
	if t.Currency == "" {
		t.Currency = s.opts.DefaultCurrency
	}
	if t.InterestMethod == "" {
		t.InterestMethod = s.opts.DefaultInterestMethod
	}
	if t.ArrearsPeriodDays == 0 {
		t.ArrearsPeriodDays = s.opts.ArrearsPeriodDays
	}
	if t.Code == "" {
		t.Code = newCode("PRE", t.DisbursementDate)
	}
	return t
}

func newLoan(t domain.LoanTerms, lines []amortization.Line, actor string, now time.Time) *domain.Loan {
	return &domain.Loan{
		ID:                      uuid.New(),
		Code:                    t.Code,
		ClientID:                t.ClientID,
		Currency:                strings.ToUpper(t.Currency),
		OriginalAmount:          t.Amount,
		InterestRatePercentage:  t.InterestRatePercentage,
		InterestMethod:          t.InterestMethod,
		TotalInstallments:       t.TotalInstallments,
		PaymentFrequency:        t.PaymentFrequency,
		DisbursementDate:        utils.TruncateToDate(t.DisbursementDate),
		FirstDueDate:            lines[0].DueDate,
		TotalPaidAmount:         decimal.Zero,
		Status:                  domain.LoanStatusDraft,
		GraceDays:               t.GraceDays,
		ArrearsRatePercentage:   t.ArrearsRatePercentage,
		ArrearsPeriodDays:       t.ArrearsPeriodDays,
		AllowsPrincipalPayment:  boolOr(t.AllowsPrincipalPayment, true),
		AllowsEarlySettlement:   boolOr(t.AllowsEarlySettlement, true),
		EarlySettlementDiscount: t.EarlySettlementDiscount,
		Notes:                   t.Notes,
		CreatedBy:               actor,
		UpdatedBy:               actor,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

// RestructureLoan closes an open loan and replaces it with a new one whose principal
// is the residual of the old loan (see restructureResidual). Credit moves from the
// old loan to the new one inside the same transaction.
func (s *LoanService) RestructureLoan(ctx context.Context, loanID uuid.UUID, terms *domain.RestructureTerms, actor string) (*domain.CreateLoanResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(terms); err != nil {
		return nil, customError.WrapInvalidScheduleInput(validation.Describe(err))
	}

	now := s.now()
	var out *domain.CreateLoanResponse

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		work, err := s.loadWorking(ctx, tx, loanID, now)
		if err != nil {
			return err
		}
		old := work.Loan
		if !old.Status.Open() {
			return customError.WrapInvalidState(old.ID, "loan", string(old.Status))
		}

		start := now
		if terms.StartDate != nil {
			start = *terms.StartDate
		}
		residual := restructureResidual(work, start)
		if !residual.IsPositive() {
			return customError.WrapInvalidState(old.ID, "loan", "fully settled")
		}
		method := terms.InterestMethod
		if method == "" {
			method = s.opts.DefaultInterestMethod
		}
		lines, err := amortization.Generate(amortization.Terms{
			Principal:        residual,
			RatePercentage:   terms.InterestRatePercentage,
			Count:            terms.TotalInstallments,
			Frequency:        terms.PaymentFrequency,
			Method:           method,
			DisbursementDate: start,
			FirstDueDate:     terms.FirstDueDate,
		})
		if err != nil {
			return err
		}

		// close the old loan: open installments move to the new loan
		before := old.CreditExposure()
		for _, inst := range work.Installments {
			if !inst.Status.Open() {
				continue
			}
			if err := inst.SetStatus(domain.InstallmentStatusRescheduled, domain.CauseLifecycle, now); err != nil {
				return err
			}
			inst.Notes = appendNote(inst.Notes, "restructured into a new loan")
			touchInstallment(inst, actor, now)
		}
		if err := old.SetStatus(domain.LoanStatusRestructured, domain.CauseLifecycle, now); err != nil {
			return err
		}
		if err := ledger.Rebalance(work, before); err != nil {
			return err
		}

		replacement := newLoan(domain.LoanTerms{
			ClientID:                old.ClientID,
			Code:                    newCode("PRE", start),
			Currency:                old.Currency,
			Amount:                  residual,
			InterestRatePercentage:  terms.InterestRatePercentage,
			InterestMethod:          method,
			TotalInstallments:       terms.TotalInstallments,
			PaymentFrequency:        terms.PaymentFrequency,
			DisbursementDate:        start,
			GraceDays:               old.GraceDays,
			ArrearsRatePercentage:   old.ArrearsRatePercentage,
			ArrearsPeriodDays:       old.ArrearsPeriodDays,
			AllowsPrincipalPayment:  &old.AllowsPrincipalPayment,
			AllowsEarlySettlement:   &old.AllowsEarlySettlement,
			EarlySettlementDiscount: old.EarlySettlementDiscount,
			Notes:                   terms.Notes,
		}, lines, actor, now)
		replacement.OriginalLoanID = &old.ID

		next := &domain.LoanAggregate{
			Client:       work.Client,
			Loan:         replacement,
			Installments: amortization.Installments(replacement, lines, 1, actor, now),
		}
		if err := replacement.SetStatus(domain.LoanStatusActive, domain.CauseLifecycle, now); err != nil {
			return err
		}
		if err := ledger.Admit(next, decimal.Zero); err != nil {
			return err
		}

		touchLoan(old, actor, now)
		touchClient(work.Client, actor, now)
		if err := repository.SaveAggregate(ctx, tx, work); err != nil {
			return err
		}
		if err := tx.Loans().Create(ctx, replacement); err != nil {
			return err
		}
		if err := tx.Loans().CreateSchedule(ctx, next.Installments); err != nil {
			return err
		}

		out = &domain.CreateLoanResponse{Loan: replacement, Schedule: next.Installments}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, loanID)
	s.log.WithFields(logrus.Fields{
		"loan_id":     loanID,
		"new_loan_id": out.Loan.ID,
		"residual":    out.Loan.OriginalAmount.String(),
		"actor":       actor,
	}).Info("loan restructured")

	return out, nil
}

// WriteOffLoan closes an open loan as uncollectable and releases its credit.
func (s *LoanService) WriteOffLoan(ctx context.Context, loanID uuid.UUID, reason, actor string) (*domain.Loan, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	now := s.now()
	var out *domain.Loan

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		work, err := s.loadWorking(ctx, tx, loanID, now)
		if err != nil {
			return err
		}
		loan := work.Loan
		if !loan.Status.Open() {
			return customError.WrapInvalidState(loan.ID, "loan", string(loan.Status))
		}

		before := loan.CreditExposure()
		if err := loan.SetStatus(domain.LoanStatusWrittenOff, domain.CauseLifecycle, now); err != nil {
			return err
		}
		if err := ledger.Rebalance(work, before); err != nil {
			return err
		}
		loan.Notes = appendNote(loan.Notes, "written off: "+reason)
		touchLoan(loan, actor, now)
		touchClient(work.Client, actor, now)

		out = loan
		return repository.SaveAggregate(ctx, tx, work)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, loanID)
	s.log.WithFields(logrus.Fields{"loan_id": loanID, "actor": actor}).Warn("loan written off")
	return out, nil
}

// ChangeLoanStatus handles a status write from outside the engine. Loan status is
// derived, so every such request fails with IllegalTransition.
func (s *LoanService) ChangeLoanStatus(ctx context.Context, loanID uuid.UUID, status string) error {
	loan, err := s.store.Loans().GetByID(ctx, loanID)
	if err != nil {
		return err
	}
	return domain.CheckLoanTransition(loan.ID, loan.Status, domain.LoanStatus(status), domain.CauseExternal)
}

func (s *LoanService) GetLoan(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	return s.store.Loans().GetByID(ctx, loanID)
}

func (s *LoanService) GetSchedule(ctx context.Context, loanID uuid.UUID) (*domain.ScheduleResponse, error) {
	if _, err := s.store.Loans().GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	installments, err := s.store.Loans().GetScheduleByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return &domain.ScheduleResponse{LoanID: loanID.String(), Installments: installments}, nil
}

// loadWorking locks the loan aggregate and returns a working copy with arrears
// accrued as of asOf.
func (s *LoanService) loadWorking(ctx context.Context, tx repository.Tx, loanID uuid.UUID, asOf time.Time) (*domain.LoanAggregate, error) {
	agg, err := repository.LoadAggregate(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	work := agg.Clone()
	if err := s.accrue(work, asOf); err != nil {
		return nil, err
	}
	return work, nil
}

// restructureResidual is the principal of a restructured loan: all unpaid principal,
// plus the interest, other charges and arrears of installments already due at start.
// Interest not yet due is not capitalized.
func restructureResidual(agg *domain.LoanAggregate, start time.Time) decimal.Decimal {
	cutoff := utils.TruncateToDate(start)
	residual := decimal.Zero
	for _, inst := range agg.Installments {
		if inst.Status.Voided() {
			continue
		}
		residual = residual.Add(inst.PrincipalDue())
		if !utils.TruncateToDate(inst.DueDate).After(cutoff) {
			residual = residual.Add(inst.InterestDue()).Add(inst.OtherChargesDue()).Add(inst.ArrearsDue())
		}
	}
	return residual
}

func (s *LoanService) accrue(agg *domain.LoanAggregate, asOf time.Time) error {
	before := agg.Loan.CreditExposure()
	if err := s.arrears.AccrueLoan(agg, asOf); err != nil {
		return err
	}
	return ledger.Rebalance(agg, before)
}

// invalidate drops cached snapshots after a committed write. A cache failure only
// costs freshness until the TTL expires, so it is logged and not returned.
func (s *LoanService) invalidate(ctx context.Context, loanIDs ...uuid.UUID) {
	for _, id := range loanIDs {
		if err := s.snapshots.InvalidateLoan(ctx, id); err != nil {
			s.log.WithError(err).WithField("loan_id", id).Warn("failed to invalidate balance snapshots")
		}
	}
}

// newCode builds a human-readable reference such as PRE-2024-1A2B3C4D.
func newCode(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%d-%s", prefix, at.Year(), suffix)
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}

func touchLoan(loan *domain.Loan, actor string, now time.Time) {
	loan.UpdatedBy, loan.UpdatedAt = actor, now
}

func touchClient(client *domain.Client, actor string, now time.Time) {
	client.UpdatedBy, client.UpdatedAt = actor, now
}

func touchInstallment(inst *domain.Installment, actor string, now time.Time) {
	inst.UpdatedBy, inst.UpdatedAt = actor, now
}
