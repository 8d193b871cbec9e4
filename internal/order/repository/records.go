package repository

import (
	"encoding/json"
	"fmt"
	"time"

	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
	"github.com/smallbiznis/crmfeed/internal/order/domain"
	"gorm.io/datatypes"
)

// OrderRecord is the persisted order row.
type OrderRecord struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement:false"`
	CustomerID         int64  `gorm:"not null;default:0;index"`
	Status             string `gorm:"not null"`
	Currency           string `gorm:"not null"`
	Total              string `gorm:"not null;default:'0'"`
	PaymentMethod      string
	PaymentMethodTitle string
	CustomerNote       string `gorm:"type:text"`

	BillingFirstName string
	BillingLastName  string
	BillingCompany   string
	BillingAddress1  string `gorm:"column:billing_address_1;type:text"`
	BillingAddress2  string `gorm:"column:billing_address_2;type:text"`
	BillingCity      string
	BillingState     string
	BillingPostcode  string
	BillingCountry   string
	BillingEmail     string
	BillingPhone     string

	ShippingFirstName string
	ShippingLastName  string
	ShippingCompany   string
	ShippingAddress1  string `gorm:"column:shipping_address_1;type:text"`
	ShippingAddress2  string `gorm:"column:shipping_address_2;type:text"`
	ShippingCity      string
	ShippingState     string
	ShippingPostcode  string
	ShippingCountry   string
	ShippingPhone     string

	Meta       datatypes.JSONMap
	CreatedAt  time.Time `gorm:"not null"`
	ModifiedAt time.Time `gorm:"not null;index"`

	Items []OrderItemRecord `gorm:"foreignKey:OrderID"`
}

func (OrderRecord) TableName() string { return "orders" }

// OrderItemRecord stores every item kind in one table; the kind column
// decides which amount columns are meaningful.
type OrderItemRecord struct {
	ID       int64  `gorm:"primaryKey;autoIncrement:false"`
	OrderID  int64  `gorm:"not null;index"`
	Kind     string `gorm:"not null"`
	Name     string
	TaxClass string

	ProductID     int64  `gorm:"not null;default:0"`
	ProductExists bool   `gorm:"not null;default:false"`
	SKU           string `gorm:"column:sku;type:text"`
	Description   string `gorm:"type:text"`
	Quantity      int64  `gorm:"not null;default:1"`
	Subtotal      string
	SubtotalTax   string

	Total    string
	TotalTax string

	MethodTitle string

	Code        string
	Discount    string
	DiscountTax string

	Options datatypes.JSON
}

func (OrderItemRecord) TableName() string { return "order_items" }

func (r *OrderRecord) toDomain() (domain.Order, error) {
	order := domain.Order{
		ID:                 r.ID,
		CustomerID:         r.CustomerID,
		Status:             r.Status,
		Currency:           r.Currency,
		Total:              domain.Amount(r.Total),
		PaymentMethod:      r.PaymentMethod,
		PaymentMethodTitle: r.PaymentMethodTitle,
		CustomerNote:       r.CustomerNote,
		Billing: domain.Address{
			FirstName: r.BillingFirstName,
			LastName:  r.BillingLastName,
			Company:   r.BillingCompany,
			Address1:  r.BillingAddress1,
			Address2:  r.BillingAddress2,
			City:      r.BillingCity,
			State:     r.BillingState,
			Postcode:  r.BillingPostcode,
			Country:   r.BillingCountry,
			Email:     r.BillingEmail,
			Phone:     r.BillingPhone,
		},
		Shipping: domain.Address{
			FirstName: r.ShippingFirstName,
			LastName:  r.ShippingLastName,
			Company:   r.ShippingCompany,
			Address1:  r.ShippingAddress1,
			Address2:  r.ShippingAddress2,
			City:      r.ShippingCity,
			State:     r.ShippingState,
			Postcode:  r.ShippingPostcode,
			Country:   r.ShippingCountry,
			Phone:     r.ShippingPhone,
		},
		Meta:       metaStrings(r.Meta),
		CreatedAt:  r.CreatedAt,
		ModifiedAt: r.ModifiedAt,
		Items:      make([]domain.Item, 0, len(r.Items)),
	}

	for i := range r.Items {
		item, err := r.Items[i].toDomain()
		if err != nil {
			return domain.Order{}, fmt.Errorf("%w (Order #%d, item #%d)", err, r.ID, r.Items[i].ID)
		}
		order.Items = append(order.Items, item)
	}
	return order, nil
}

func (r *OrderItemRecord) toDomain() (domain.Item, error) {
	kind, err := domain.ParseKind(r.Kind)
	if err != nil {
		return nil, err
	}

	base := domain.ItemBase{
		ID:       r.ID,
		Name:     r.Name,
		TaxClass: r.TaxClass,
		Options:  decodeOptions(r.Options),
	}

	switch kind {
	case domain.KindProduct:
		item := &domain.ProductItem{
			ItemBase:    base,
			ProductID:   r.ProductID,
			Quantity:    r.Quantity,
			Subtotal:    domain.Amount(r.Subtotal),
			SubtotalTax: domain.Amount(r.SubtotalTax),
		}
		if r.ProductExists {
			item.Product = &domain.Product{SKU: r.SKU, Description: r.Description}
		}
		return item, nil
	case domain.KindFee:
		return &domain.FeeItem{
			ItemBase: base,
			Total:    domain.Amount(r.Total),
			TotalTax: domain.Amount(r.TotalTax),
		}, nil
	case domain.KindShipping:
		return &domain.ShippingItem{
			ItemBase:    base,
			MethodTitle: r.MethodTitle,
			Total:       domain.Amount(r.Total),
			TotalTax:    domain.Amount(r.TotalTax),
		}, nil
	case domain.KindCoupon:
		return &domain.CouponItem{
			ItemBase:    base,
			Code:        r.Code,
			Discount:    domain.Amount(r.Discount),
			DiscountTax: domain.Amount(r.DiscountTax),
		}, nil
	}
	return nil, feeddomain.DomainErrorf("Unexpected item kind: '%s'", r.Kind)
}

// decodeOptions keeps the options whose name and value are both strings.
// Anything else, including a column that is not a JSON array, is dropped
// without failing the order.
func decodeOptions(raw datatypes.JSON) []domain.ItemOption {
	if len(raw) == 0 {
		return nil
	}
	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	var options []domain.ItemOption
	for _, entry := range entries {
		name, ok := entry["name"].(string)
		if !ok {
			continue
		}
		value, ok := entry["value"].(string)
		if !ok {
			continue
		}
		options = append(options, domain.ItemOption{Name: name, Value: value})
	}
	return options
}

func metaStrings(meta datatypes.JSONMap) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for key, value := range meta {
		switch v := value.(type) {
		case nil:
			out[key] = ""
		case string:
			out[key] = v
		default:
			out[key] = fmt.Sprint(v)
		}
	}
	return out
}
