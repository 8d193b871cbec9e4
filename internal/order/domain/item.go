package domain

import (
	"fmt"

	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
)

// Kind names the four order item variants as they are stored.
type Kind string

const (
	KindProduct  Kind = "line_item"
	KindFee      Kind = "fee"
	KindShipping Kind = "shipping"
	KindCoupon   Kind = "coupon"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindProduct, KindFee, KindShipping, KindCoupon:
		return Kind(raw), nil
	default:
		return "", feeddomain.DomainErrorf("Unexpected item kind: '%s'", raw)
	}
}

// Item is one of *ProductItem, *FeeItem, *ShippingItem or *CouponItem.
// The set is closed: the unexported marker keeps other packages from
// adding variants, so type switches over the four cases are exhaustive.
type Item interface {
	Base() *ItemBase
	Kind() Kind
	item()
}

// ItemBase holds the fields every variant carries.
type ItemBase struct {
	ID       int64
	Name     string
	TaxClass string
	Options  []ItemOption
}

func (b *ItemBase) Base() *ItemBase { return b }

// ItemOption is a customer-chosen product option attached to an item.
type ItemOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Product is the catalog snapshot of an ordered product. It is nil when
// the product has been deleted since the order was placed.
type Product struct {
	SKU         string
	Description string
}

type ProductItem struct {
	ItemBase
	ProductID   int64
	Quantity    int64
	Subtotal    Amount
	SubtotalTax Amount
	Product     *Product
}

type FeeItem struct {
	ItemBase
	Total    Amount
	TotalTax Amount
}

type ShippingItem struct {
	ItemBase
	MethodTitle string
	Total       Amount
	TotalTax    Amount
}

type CouponItem struct {
	ItemBase
	Code        string
	Discount    Amount
	DiscountTax Amount
}

func (*ProductItem) Kind() Kind  { return KindProduct }
func (*FeeItem) Kind() Kind      { return KindFee }
func (*ShippingItem) Kind() Kind { return KindShipping }
func (*CouponItem) Kind() Kind   { return KindCoupon }

func (*ProductItem) item()  {}
func (*FeeItem) item()      {}
func (*ShippingItem) item() {}
func (*CouponItem) item()   {}

// Quantity is the product quantity; the other kinds count as one.
func Quantity(item Item) int64 {
	if product, ok := item.(*ProductItem); ok {
		return product.Quantity
	}
	return 1
}

// Totals returns the net total and tax amount the item reports for its
// own kind. Products use the subtotal, which excludes coupon discounts.
func Totals(item Item) (total, tax Amount, err error) {
	switch v := item.(type) {
	case *ProductItem:
		return v.Subtotal, v.SubtotalTax, nil
	case *FeeItem:
		return v.Total, v.TotalTax, nil
	case *ShippingItem:
		return v.Total, v.TotalTax, nil
	case *CouponItem:
		return v.Discount, v.DiscountTax, nil
	default:
		return "", "", feeddomain.DomainErrorf("Unexpected item class: '%T'", item)
	}
}

// Describe names the item for error messages.
func Describe(item Item) string {
	switch v := item.(type) {
	case *ProductItem:
		return fmt.Sprintf("Product #%d", v.ProductID)
	case *FeeItem:
		return fmt.Sprintf("Fee item #%d", v.ID)
	case *ShippingItem:
		return fmt.Sprintf("Shipping fee item #%d", v.ID)
	case *CouponItem:
		return fmt.Sprintf("Coupon item #%d", v.ID)
	default:
		return fmt.Sprintf("Unexpected item class: '%T'", item)
	}
}
