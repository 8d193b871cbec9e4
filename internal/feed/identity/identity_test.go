package identity

import (
	"testing"

	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
	orderdomain "github.com/smallbiznis/crmfeed/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithShopOffsetRoundTrip(t *testing.T) {
	raws := []int64{0, 1, 42, ReservedProductIDStart, ReservedProductIDStart + 7, GuestOffset + 3, ShopOffsetSize - 1}
	for shop := 0; shop <= MaxShopID; shop++ {
		for _, raw := range raws {
			got, err := WithShopOffset(raw, shop)
			require.NoError(t, err)
			assert.Equal(t, int64(shop), got/ShopOffsetSize)
			assert.Equal(t, raw, got%ShopOffsetSize)
		}
	}
}

func TestWithShopOffsetBounds(t *testing.T) {
	got, err := WithShopOffset(ShopOffsetSize, 0)
	require.NoError(t, err)
	assert.Equal(t, ShopOffsetSize, got)

	_, err = WithShopOffset(ShopOffsetSize+1, 0)
	assert.ErrorIs(t, err, feeddomain.ErrRange)

	_, err = WithShopOffset(-1, 0)
	assert.ErrorIs(t, err, feeddomain.ErrRange)

	_, err = WithShopOffset(1, MaxShopID+1)
	assert.ErrorIs(t, err, feeddomain.ErrRange)
}

func TestOrderProjectID(t *testing.T) {
	registered, err := OrderProjectID(900, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(12), registered)

	guest, err := OrderProjectID(900, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(900)+GuestOffset, guest)
	assert.True(t, IsGuestProject(guest))
	assert.Equal(t, int64(900), GuestOrderID(guest))

	_, err = OrderProjectID(900, GuestOffset)
	assert.ErrorIs(t, err, feeddomain.ErrRange)
}

func TestOrderProjectIDDomainsAreDisjoint(t *testing.T) {
	customers := []int64{1, 2, 1000, GuestOffset - 1}
	orders := []int64{0, 1, 2, 1000, GuestOffset - 1}

	registered := make(map[int64]struct{})
	for _, c := range customers {
		id, err := OrderProjectID(1, c)
		require.NoError(t, err)
		registered[id] = struct{}{}
	}
	for _, o := range orders {
		id, err := OrderProjectID(o, 0)
		require.NoError(t, err)
		_, clash := registered[id]
		assert.False(t, clash, "guest order %d collides with a customer id", o)
	}
}

func TestProductNodeID(t *testing.T) {
	tests := []struct {
		name    string
		item    orderdomain.Item
		want    int64
		wantErr error
	}{
		{
			name: "catalog product",
			item: &orderdomain.ProductItem{ItemBase: orderdomain.ItemBase{ID: 5}, ProductID: 321},
			want: 321,
		},
		{
			name: "deleted product",
			item: &orderdomain.ProductItem{ItemBase: orderdomain.ItemBase{ID: 5}},
			want: ReservedProductIDStart + 5,
		},
		{
			name:    "product in reserved range",
			item:    &orderdomain.ProductItem{ItemBase: orderdomain.ItemBase{ID: 5}, ProductID: ReservedProductIDStart},
			wantErr: feeddomain.ErrRange,
		},
		{
			name: "fee",
			item: &orderdomain.FeeItem{ItemBase: orderdomain.ItemBase{ID: 8}},
			want: ReservedProductIDStart + 8,
		},
		{
			name: "shipping",
			item: &orderdomain.ShippingItem{ItemBase: orderdomain.ItemBase{ID: 9}},
			want: ReservedProductIDStart + 9,
		},
		{
			name: "coupon",
			item: &orderdomain.CouponItem{ItemBase: orderdomain.ItemBase{ID: 10}},
			want: ReservedProductIDStart + 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProductNodeID(tt.item)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
