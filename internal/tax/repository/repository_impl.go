package repository

import (
	"context"

	taxdomain "github.com/smallbiznis/crmfeed/internal/tax/domain"
	"github.com/smallbiznis/crmfeed/pkg/db"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) taxdomain.Repository {
	return &repository{db: db}
}

func (r *repository) ListAll(ctx context.Context) ([]taxdomain.Rate, error) {
	var rates []taxdomain.Rate
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, country, state, postcode, city, rate, name, priority, compound, shipping, tax_class, rate_order
		 FROM tax_rates
		 ORDER BY priority ASC, rate_order ASC, id ASC`,
	).Scan(&rates).Error
	if err != nil {
		return nil, err
	}
	return rates, nil
}

func (r *repository) Create(ctx context.Context, rate *taxdomain.Rate) error {
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO tax_rates (
			id, country, state, postcode, city, rate, name, priority, compound, shipping, tax_class, rate_order
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rate.ID,
		rate.Country,
		rate.State,
		rate.Postcode,
		rate.City,
		rate.Rate,
		rate.Name,
		rate.Priority,
		rate.Compound,
		rate.Shipping,
		rate.TaxClass,
		rate.RateOrder,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return taxdomain.ErrDuplicateRate
	}
	return err
}
