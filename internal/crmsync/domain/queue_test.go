package domain

import (
	"testing"

	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
	orderdomain "github.com/smallbiznis/crmfeed/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOrders(t *testing.T) {
	set := NewProjectSet()
	err := set.QueueOrders([]orderdomain.ProjectRef{
		{OrderID: 10, CustomerID: 7, Status: "processing"},
		{OrderID: 11, CustomerID: 0, Status: "pending"},
		{OrderID: 12, CustomerID: 7, Status: "completed"},
		{OrderID: 13, CustomerID: 0, Status: orderdomain.StatusDraft},
		{OrderID: 14, CustomerID: 9, Status: orderdomain.StatusCheckoutDraft},
		{OrderID: 15, CustomerID: 0, Status: "trash"},
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{7, 50000011, 50000015}, set.IDs())
	assert.Equal(t, "7,50000011,50000015", set.String())
	assert.Equal(t, 3, set.Len())
}

func TestQueueOrdersRejectsCustomerInGuestRange(t *testing.T) {
	set := NewProjectSet()
	err := set.QueueOrders([]orderdomain.ProjectRef{{OrderID: 1, CustomerID: 50000000, Status: "processing"}})
	assert.ErrorIs(t, err, feeddomain.ErrRange)
	assert.Zero(t, set.Len())
}

func TestProjectSetIDsIsACopy(t *testing.T) {
	set := NewProjectSet()
	set.Add(1)
	ids := set.IDs()
	ids[0] = 99
	assert.Equal(t, []int64{1}, set.IDs())
}
