package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
)

// Statuses skipped when queueing projects for sync.
const (
	StatusDraft         = "draft"
	StatusCheckoutDraft = "checkout-draft"
)

// Address is a billing or shipping address as stored on the order.
type Address struct {
	FirstName string
	LastName  string
	Company   string
	Address1  string
	Address2  string
	City      string
	State     string
	Postcode  string
	Country   string
	Email     string
	Phone     string
}

// Street joins both address lines.
func (a Address) Street() string {
	return strings.TrimSpace(a.Address1 + " " + a.Address2)
}

// Order is an immutable snapshot of a shop order.
type Order struct {
	ID                 int64
	CustomerID         int64
	Status             string
	Currency           string
	Total              Amount
	PaymentMethod      string
	PaymentMethodTitle string
	CustomerNote       string
	Billing            Address
	Shipping           Address
	Meta               map[string]string
	CreatedAt          time.Time
	ModifiedAt         time.Time
	Items              []Item
}

func (o *Order) Ref() ProjectRef {
	return ProjectRef{OrderID: o.ID, CustomerID: o.CustomerID, Status: o.Status}
}

// ShippingMethod lists the titles of the order's shipping items.
func (o *Order) ShippingMethod() string {
	titles := make([]string, 0, 1)
	for _, item := range o.Items {
		if shipping, ok := item.(*ShippingItem); ok {
			titles = append(titles, shipping.MethodTitle)
		}
	}
	return strings.Join(titles, ", ")
}

func (o *Order) MetaValue(key string) string {
	if o.Meta == nil {
		return ""
	}
	return o.Meta[key]
}

// Amount is a monetary value as stored upstream. It stays textual until
// read, so corrupted values surface where they are used.
type Amount string

func (a Amount) Decimal() (decimal.Decimal, error) {
	raw := strings.TrimSpace(string(a))
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, feeddomain.DomainErrorf("non-numeric value '%s'", string(a))
	}
	return value, nil
}
