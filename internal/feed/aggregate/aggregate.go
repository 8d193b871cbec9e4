// Package aggregate groups orders into CRM projects and folds order items
// into product lines.
package aggregate

import (
	"fmt"

	"github.com/shopspring/decimal"
	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
	"github.com/smallbiznis/crmfeed/internal/feed/identity"
	orderdomain "github.com/smallbiznis/crmfeed/internal/order/domain"
)

// ProjectGroup is the set of orders exported under one project.
type ProjectGroup struct {
	ProjectID int64
	// Orders keep the order they were supplied in, most recent first.
	Orders []*orderdomain.Order
}

// Latest is the order project level fields are read from.
func (g ProjectGroup) Latest() *orderdomain.Order {
	if len(g.Orders) == 0 {
		return nil
	}
	return g.Orders[0]
}

// GroupByProject groups orders by project id. Groups appear in the order
// their first order was seen.
func GroupByProject(orders []orderdomain.Order) ([]ProjectGroup, error) {
	index := make(map[int64]int)
	groups := make([]ProjectGroup, 0)

	for i := range orders {
		order := &orders[i]
		projectID, err := identity.OrderProjectID(order.ID, order.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("%w (Order #%d)", err, order.ID)
		}
		pos, ok := index[projectID]
		if !ok {
			pos = len(groups)
			index[projectID] = pos
			groups = append(groups, ProjectGroup{ProjectID: projectID})
		}
		groups[pos].Orders = append(groups[pos].Orders, order)
	}
	return groups, nil
}

// Status is the project status key, translated to a CRM status id per locale.
type Status string

const (
	StatusRegistered Status = "registered"
	StatusNew        Status = "new"
	StatusPromising  Status = "promising"
)

// ProjectStatus derives the status from the number of orders.
// Groups built by GroupByProject always hold at least one order.
func ProjectStatus(orderCount int) Status {
	switch {
	case orderCount <= 0:
		return StatusRegistered
	case orderCount == 1:
		return StatusNew
	default:
		return StatusPromising
	}
}

// TaxResolver supplies the VAT percent of an order item.
type TaxResolver interface {
	ResolveTaxPercent(order *orderdomain.Order, item orderdomain.Item) (float64, error)
}

// Line is one product row of an exported order.
type Line struct {
	NodeID     int64
	Item       orderdomain.Item
	Quantity   int64
	UnitPrice  decimal.Decimal
	TaxPercent float64
}

// MergeLines folds the order's items into product lines. Product items that
// resolve to the same node id add to the first line's quantity and keep
// its unit price; fee, shipping and coupon items always get their own line.
func MergeLines(order *orderdomain.Order, taxes TaxResolver) ([]Line, error) {
	lines := make([]Line, 0, len(order.Items))
	products := make(map[int64]int)

	for _, item := range order.Items {
		percent, err := taxes.ResolveTaxPercent(order, item)
		if err != nil {
			return nil, fmt.Errorf("%w (Order #%d, %s)", err, order.ID, orderdomain.Describe(item))
		}
		nodeID, err := identity.ProductNodeID(item)
		if err != nil {
			return nil, fmt.Errorf("%w (Order #%d, %s)", err, order.ID, orderdomain.Describe(item))
		}
		quantity := orderdomain.Quantity(item)

		_, isProduct := item.(*orderdomain.ProductItem)
		if isProduct {
			if pos, ok := products[nodeID]; ok {
				lines[pos].Quantity += quantity
				continue
			}
		}

		price, err := unitPrice(item, quantity)
		if err != nil {
			return nil, fmt.Errorf("%w (Order #%d, %s)", err, order.ID, orderdomain.Describe(item))
		}
		if isProduct {
			products[nodeID] = len(lines)
		}
		lines = append(lines, Line{
			NodeID:     nodeID,
			Item:       item,
			Quantity:   quantity,
			UnitPrice:  price,
			TaxPercent: percent,
		})
	}
	return lines, nil
}

// unitPrice divides the item's net value by its quantity. Coupons are
// exported as negative prices.
func unitPrice(item orderdomain.Item, quantity int64) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, feeddomain.DomainErrorf("Non-positive quantity %d", quantity)
	}

	var net orderdomain.Amount
	switch v := item.(type) {
	case *orderdomain.ProductItem:
		net = v.Subtotal
	case *orderdomain.FeeItem:
		net = v.Total
	case *orderdomain.ShippingItem:
		net = v.Total
	case *orderdomain.CouponItem:
		discount, err := v.Discount.Decimal()
		if err != nil {
			return decimal.Zero, err
		}
		return discount.Neg(), nil
	default:
		return decimal.Zero, feeddomain.DomainErrorf("Unexpected item class: '%T'", item)
	}

	value, err := net.Decimal()
	if err != nil {
		return decimal.Zero, err
	}
	return value.Div(decimal.NewFromInt(quantity)), nil
}

// ReservedIDs tracks reserved-range node ids across a whole document.
// Item ids are unique per shop upstream, so a repeat from another order
// means two rows would share one exported product id.
type ReservedIDs struct {
	owners map[int64]int64
}

func NewReservedIDs() *ReservedIDs {
	return &ReservedIDs{owners: make(map[int64]int64)}
}

// Claim records nodeID for the order, failing if another order holds it.
func (r *ReservedIDs) Claim(nodeID, orderID int64) error {
	if !identity.IsReserved(nodeID) {
		return nil
	}
	owner, ok := r.owners[nodeID]
	if ok && owner != orderID {
		return feeddomain.RangeErrorf("Reserved product ID '%d' is used by both order #%d and order #%d.", nodeID, owner, orderID)
	}
	r.owners[nodeID] = orderID
	return nil
}
