package service

import (
	"context"

	"github.com/shopspring/decimal"
	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
	orderdomain "github.com/smallbiznis/crmfeed/internal/order/domain"
	taxdomain "github.com/smallbiznis/crmfeed/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type LoaderParams struct {
	fx.In

	Log        *zap.Logger
	Repository taxdomain.Repository
}

// Loader snapshots the tax rate table before a feed build.
type Loader struct {
	log  *zap.Logger
	repo taxdomain.Repository
}

func NewLoader(p LoaderParams) *Loader {
	return &Loader{
		log:  p.Log.Named("tax.loader"),
		repo: p.Repository,
	}
}

func (l *Loader) Load(ctx context.Context) (*taxdomain.RateTable, error) {
	rates, err := l.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	l.log.Debug("tax rates loaded", zap.Int("count", len(rates)))
	return taxdomain.NewRateTable(rates), nil
}

var hundred = decimal.NewFromInt(100)

// Reconciler resolves the VAT percent of order items against a rate
// snapshot. Because historic rates are not kept on the order, the recorded
// tax wins whenever the current table disagrees with it.
type Reconciler struct {
	table    *taxdomain.RateTable
	settings taxdomain.Settings
}

func NewReconciler(table *taxdomain.RateTable, settings taxdomain.Settings) *Reconciler {
	return &Reconciler{table: table, settings: settings}
}

// ResolveTaxPercent returns the VAT percent for an item of the order.
func (r *Reconciler) ResolveTaxPercent(order *orderdomain.Order, item orderdomain.Item) (float64, error) {
	location := r.TaxLocation(order)
	taxClass := item.Base().TaxClass

	var rates []taxdomain.Rate
	switch item.(type) {
	case *orderdomain.ShippingItem:
		rates = r.table.FindShippingRates(taxClass, location)
	case *orderdomain.ProductItem, *orderdomain.FeeItem, *orderdomain.CouponItem:
		rates = r.table.FindRates(taxClass, location)
	default:
		return 0, feeddomain.DomainErrorf("Unexpected item class '%T'", item)
	}

	rawTotal, rawTax, err := orderdomain.Totals(item)
	if err != nil {
		return 0, err
	}
	total, err := rawTotal.Decimal()
	if err != nil {
		return 0, feeddomain.DomainErrorf("An item of kind '%s' has a non-numeric total with a value of: '%s'", item.Kind(), rawTotal)
	}
	tax, err := rawTax.Decimal()
	if err != nil {
		return 0, feeddomain.DomainErrorf("An item of kind '%s' has a non-numeric total tax with a value of: '%s'", item.Kind(), rawTax)
	}

	percent := decimal.Zero
	for _, rate := range rates {
		value, err := rate.Percent()
		if err != nil {
			return 0, err
		}
		percent = percent.Add(value)
	}

	calculated := total.Mul(percent).Div(hundred).Round(r.settings.Precision)
	if !calculated.Equal(tax) {
		if total.IsZero() {
			return 0, feeddomain.DomainErrorf("Cannot derive tax percent: total is zero but tax is '%s'", tax.String())
		}
		percent = hundred.Mul(tax).Div(total).Round(0)
	}
	return percent.InexactFloat64(), nil
}

// TaxLocation picks the address taxes were calculated for, falling back to
// the shop's base location.
func (r *Reconciler) TaxLocation(order *orderdomain.Order) taxdomain.Location {
	basis := r.settings.Basis
	if basis == taxdomain.BasisShipping && order.Shipping.Country == "" {
		basis = taxdomain.BasisBilling
	}

	address := order.Shipping
	if basis == taxdomain.BasisBilling {
		address = order.Billing
	}
	location := taxdomain.Location{
		Country:  address.Country,
		State:    address.State,
		Postcode: address.Postcode,
		City:     address.City,
	}

	if basis == taxdomain.BasisBase || location.Country == "" {
		return r.settings.BaseLocation
	}
	return location
}
