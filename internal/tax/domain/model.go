package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
)

// Rate is one row of the shop's tax rate table.
// Empty location fields match any value.
type Rate struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false"`
	Country   string `gorm:"not null;default:''"`
	State     string `gorm:"not null;default:''"`
	Postcode  string `gorm:"not null;default:''"`
	City      string `gorm:"not null;default:''"`
	Rate      string `gorm:"not null"` // percent, stored as text upstream (e.g. "27.0000")
	Name      string `gorm:"type:text"`
	Priority  int    `gorm:"not null;default:1"`
	Compound  bool   `gorm:"not null;default:false"`
	Shipping  bool   `gorm:"not null;default:true"`
	TaxClass  string `gorm:"not null;default:''"`
	RateOrder int    `gorm:"not null;default:0"`
}

func (Rate) TableName() string { return "tax_rates" }

func (r Rate) Percent() (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(r.Rate))
	if err != nil {
		return decimal.Zero, feeddomain.DomainErrorf("Non-float tax rate: '%s'.", r.Rate)
	}
	return value, nil
}

// Location is the address taxes are calculated for.
type Location struct {
	Country  string
	State    string
	Postcode string
	City     string
}

// Basis selects which order address drives tax calculation.
type Basis string

const (
	BasisBilling  Basis = "billing"
	BasisShipping Basis = "shipping"
	BasisBase     Basis = "base"
)

func ParseBasis(raw string) (Basis, error) {
	switch b := Basis(strings.ToLower(strings.TrimSpace(raw))); b {
	case "":
		return BasisBilling, nil
	case BasisBilling, BasisShipping, BasisBase:
		return b, nil
	default:
		return "", feeddomain.ConfigErrorf("Unexpected tax basis '%s'", raw)
	}
}

// Settings carries the shop-wide tax options.
type Settings struct {
	Basis        Basis
	BaseLocation Location
	// Precision is the number of price decimals the shop rounds to.
	Precision int32
}
