package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionMode says who absorbs the platform commission percentage
type CommissionMode string

const (
	// CommissionCompetitor adds the commission on top of the computed amount
	CommissionCompetitor CommissionMode = "competitor"
	// CommissionOrganizer absorbs the commission into the organizer payout
	CommissionOrganizer CommissionMode = "organizer"
)

// Season is a time-boxed championship window competitors enroll into
type Season struct {
	ID                  string
	ChampionshipID      string
	Name                string
	RegistrationOpen    bool
	EnrollmentScope     EnrollmentScope
	UnitPrice           decimal.Decimal
	MaxInstallmentsPix  int
	MaxInstallmentsCard int
	CommissionPercent   decimal.Decimal
	CommissionMode      CommissionMode
	SplitEnabled        bool
	SplitWalletID       string
	SplitPercent        decimal.Decimal
	StartsAt            time.Time
	EndsAt              time.Time
}

// MaxInstallments returns the season's installment cap for a billing type
func (s *Season) MaxInstallments(billing BillingType) int {
	if billing == BillingCreditCard {
		return s.MaxInstallmentsCard
	}
	return s.MaxInstallmentsPix
}

// Category is a competition class within a season
type Category struct {
	ID       string
	SeasonID string
	Name     string
}

// Stage is a single race weekend within a season
type Stage struct {
	ID       string
	SeasonID string
	Name     string
	Date     time.Time
}

// Competitor is the enrolling racer profile
type Competitor struct {
	ID                 string
	Name               string
	Email              string
	Phone              string
	TaxDocument        string
	ExternalCustomerID string
}
