package domain

import (
	"time"

	"github.com/segyhp/credit-engine/pkg/utils"
)

type PaymentFrequency string

const (
	FrequencyWeekly      PaymentFrequency = "weekly"
	FrequencyBiweekly    PaymentFrequency = "biweekly"
	FrequencyMonthly     PaymentFrequency = "monthly"
	FrequencyBimonthly   PaymentFrequency = "bimonthly"
	FrequencyTrimesterly PaymentFrequency = "trimesterly"
	FrequencySemiannual  PaymentFrequency = "semiannual"
	FrequencyAnnual      PaymentFrequency = "annual"
)

// period returns the length of one period as (days, months); exactly one is non-zero.
func (f PaymentFrequency) period() (days int, months int, ok bool) {
	switch f {
	case FrequencyWeekly:
		return 7, 0, true
	case FrequencyBiweekly:
		return 14, 0, true
	case FrequencyMonthly:
		return 0, 1, true
	case FrequencyBimonthly:
		return 0, 2, true
	case FrequencyTrimesterly:
		return 0, 3, true
	case FrequencySemiannual:
		return 0, 6, true
	case FrequencyAnnual:
		return 0, 12, true
	}
	return 0, 0, false
}

func (f PaymentFrequency) Valid() bool {
	_, _, ok := f.period()
	return ok
}

// Advance moves anchor forward by n periods. Month-based periods are computed from
// the anchor, not chained, so a schedule anchored on the 31st keeps landing on month end.
func (f PaymentFrequency) Advance(anchor time.Time, n int) time.Time {
	days, months, _ := f.period()
	if months > 0 {
		return utils.AddMonthsClamped(anchor, months*n)
	}
	return utils.AddDays(anchor, days*n)
}

// InterestMethod selects how the schedule generator splits each installment.
type InterestMethod string

const (
	InterestMethodFlat             InterestMethod = "flat"
	InterestMethodDecliningBalance InterestMethod = "declining_balance"
)

func (m InterestMethod) Valid() bool {
	switch m {
	case InterestMethodFlat, InterestMethodDecliningBalance:
		return true
	}
	return false
}

type ScheduleResponse struct {
	LoanID       string         `json:"loan_id"`
	Installments []*Installment `json:"installments"`
}
