// Package identity maps orders, customers and items onto the single flat
// integer namespace of the exported document.
//
// Per shop the namespace is split into ordinary product ids (below
// ReservedProductIDStart) and a reserved block addressed by item id, used
// by deleted products, fees, shipping and coupons. Every exported id is
// finally shifted by shopID*ShopOffsetSize so several shops can share one
// CRM account.
package identity

import (
	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
	orderdomain "github.com/smallbiznis/crmfeed/internal/order/domain"
)

const (
	// ReservedProductIDStart is the first id of the reserved item block.
	ReservedProductIDStart int64 = 10_000_000
	// ShopOffsetSize is the width of one shop's id range.
	ShopOffsetSize int64 = 100_000_000
	// GuestOffset shifts guest order ids into their own project range.
	// Registered customer ids must stay below it.
	GuestOffset int64 = 50_000_000
	// MaxShopID is the largest shop multiplier.
	MaxShopID = 99
)

// ProductNodeID returns the exported product id of an item before the shop
// offset is applied.
func ProductNodeID(item orderdomain.Item) (int64, error) {
	switch v := item.(type) {
	case *orderdomain.ProductItem:
		if v.ProductID >= ReservedProductIDStart {
			return 0, feeddomain.RangeErrorf("Product ID '%d' is in reserved range.", v.ProductID)
		}
		// Deleted products have no product id.
		if v.ProductID <= 0 {
			return ReservedProductIDStart + v.ID, nil
		}
		return v.ProductID, nil
	case *orderdomain.FeeItem, *orderdomain.ShippingItem, *orderdomain.CouponItem:
		return ReservedProductIDStart + item.Base().ID, nil
	default:
		return 0, feeddomain.DomainErrorf("Unexpected order item class: '%T'.", item)
	}
}

// IsReserved reports whether a raw id lies in the reserved item block.
func IsReserved(id int64) bool {
	return id >= ReservedProductIDStart
}

// WithShopOffset moves a raw id into the range of the given shop.
func WithShopOffset(id int64, shopID int) (int64, error) {
	if id > ShopOffsetSize {
		return 0, feeddomain.RangeErrorf("ID #%d exceeds SHOP_OFFSET_SIZE, posing a threat of ID collision.", id)
	}
	if id < 0 {
		return 0, feeddomain.RangeErrorf("ID #%d is negative.", id)
	}
	if shopID < 0 || shopID > MaxShopID {
		return 0, feeddomain.RangeErrorf("Shop ID %d is outside 0-%d.", shopID, MaxShopID)
	}
	return id + int64(shopID)*ShopOffsetSize, nil
}

// OrderProjectID returns the project an order belongs to: the customer id
// for registered customers, the offset order id for guests.
func OrderProjectID(orderID, customerID int64) (int64, error) {
	if customerID == 0 {
		return orderID + GuestOffset, nil
	}
	if customerID >= GuestOffset {
		return 0, feeddomain.RangeErrorf("Registered user ID (#%d) is out of range", customerID)
	}
	return customerID, nil
}

// IsGuestProject reports whether a project id stands for a single guest
// order rather than a registered customer.
func IsGuestProject(projectID int64) bool {
	return projectID >= GuestOffset
}

// GuestOrderID recovers the order id behind a guest project id.
func GuestOrderID(projectID int64) int64 {
	return projectID - GuestOffset
}
