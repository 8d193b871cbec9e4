package document

import (
	"regexp"

	"github.com/shopspring/decimal"
	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
	orderdomain "github.com/smallbiznis/crmfeed/internal/order/domain"
)

var vatRe = regexp.MustCompile(`^(\d+)%$`)

// CheckOrderIntegrity recomputes the order's gross total from its rendered
// product rows and compares it with the recorded total. Net and gross row
// values are rounded one by one, as the shop does.
func CheckOrderIntegrity(order *orderdomain.Order, node Order, precision int32) error {
	recorded, err := order.Total.Decimal()
	if err != nil {
		return feeddomain.DomainErrorf("Order #%d total is non-numeric: '%s'.", order.ID, order.Total)
	}

	hundred := decimal.NewFromInt(100)
	total := decimal.Zero
	for _, product := range node.Products.Items {
		match := vatRe.FindStringSubmatch(product.VAT)
		if match == nil {
			return feeddomain.DomainErrorf("Invalid VAT '%s' during integrity check. (Order #%d, Product #%d)", product.VAT, order.ID, product.ID)
		}
		percent, err := decimal.NewFromString(match[1])
		if err != nil {
			return feeddomain.DomainErrorf("Invalid VAT '%s' during integrity check. (Order #%d, Product #%d)", product.VAT, order.ID, product.ID)
		}
		price, err := decimal.NewFromString(product.PriceNet)
		if err != nil {
			return feeddomain.DomainErrorf("Invalid net price '%s' during integrity check. (Order #%d, Product #%d)", product.PriceNet, order.ID, product.ID)
		}

		multiplier := decimal.NewFromInt(1).Add(percent.Div(hundred))
		net := price.Mul(decimal.NewFromInt(product.Quantity)).Round(precision)
		total = total.Add(net.Mul(multiplier).Round(precision))
	}
	total = total.Round(precision)

	if !total.Equal(recorded) {
		return feeddomain.DomainErrorf("Order #%d grand total differs: %s (shop) != %s (feed).", order.ID, recorded.String(), total.String())
	}
	return nil
}
