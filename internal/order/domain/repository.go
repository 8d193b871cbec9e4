package domain

import "context"

// ProjectRef is the minimum needed to place an order into a project.
type ProjectRef struct {
	OrderID    int64
	CustomerID int64
	Status     string
}

func (r ProjectRef) IsDraft() bool {
	return r.Status == StatusDraft || r.Status == StatusCheckoutDraft
}

// Repository is the order source. Every list is ordered most recently
// modified first, trashed orders included.
type Repository interface {
	ListAll(ctx context.Context) ([]Order, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]Order, error)
	FindByID(ctx context.Context, orderID int64) (*Order, error)
	// ListProjectRefs returns every order ordered by id ascending.
	ListProjectRefs(ctx context.Context) ([]ProjectRef, error)
}
