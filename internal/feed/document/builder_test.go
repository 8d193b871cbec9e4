package document

import (
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/crmfeed/internal/feed/aggregate"
	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
	orderdomain "github.com/smallbiznis/crmfeed/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type flatTax float64

func (f flatTax) ResolveTaxPercent(*orderdomain.Order, orderdomain.Item) (float64, error) {
	return float64(f), nil
}

func testOptions() Options {
	return Options{
		Locale:      feeddomain.LocaleEN,
		ShopID:      1,
		CategoryID:  "42",
		FolderName:  "Webshop",
		BaseCountry: "HU",
	}
}

func companyOrder() orderdomain.Order {
	return orderdomain.Order{
		ID:            101,
		CustomerID:    7,
		Status:        "processing",
		Currency:      "HUF",
		Total:         "1397",
		PaymentMethod: "cod",
		CustomerNote:  "Ring the bell",
		Billing: orderdomain.Address{
			FirstName: "Jane",
			LastName:  "Doe",
			Company:   "Acme Ltd",
			Address1:  "Fő utca 1",
			Address2:  "2/3",
			City:      "Budapest",
			Postcode:  "1011",
			Country:   "HU",
			Email:     "jane@example.com",
			Phone:     "+3612345678",
		},
		Meta:      map[string]string{VatNumberMeta: "12345678-1-42"},
		CreatedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		Items: []orderdomain.Item{
			&orderdomain.ProductItem{
				ItemBase:  orderdomain.ItemBase{ID: 1, Name: "Ring", Options: []orderdomain.ItemOption{{Name: "Engraving", Value: "Love"}}},
				ProductID: 55,
				Quantity:  2,
				Subtotal:  "1000",
				Product:   &orderdomain.Product{SKU: "SKU-1", Description: `Tom's <b>"best"</b> & more`},
			},
			&orderdomain.ShippingItem{ItemBase: orderdomain.ItemBase{ID: 2}, MethodTitle: "GLS", Total: "200"},
			&orderdomain.CouponItem{ItemBase: orderdomain.ItemBase{ID: 3}, Code: "SALE", Discount: "100"},
		},
	}
}

func build(t *testing.T, opts Options, orders ...orderdomain.Order) *Projects {
	t.Helper()
	groups, err := aggregate.GroupByProject(orders)
	require.NoError(t, err)
	builder, err := NewBuilder(zap.NewNop(), opts, flatTax(27))
	require.NoError(t, err)
	doc, err := builder.Build(groups)
	require.NoError(t, err)
	return doc
}

func TestBuildProject(t *testing.T) {
	opts := testOptions()
	opts.SyncProductDescription = true
	opts.VATNumberEnabled = true

	doc := build(t, opts, companyOrder())
	require.Len(t, doc.Projects, 1)
	project := doc.Projects[0]

	assert.Equal(t, int64(100_000_007), project.ID)
	assert.Equal(t, "Acme Ltd (Jane Doe)", project.Name)
	assert.Equal(t, "42", project.CategoryID)
	assert.Equal(t, DefaultProjectStatusIDs[feeddomain.LocaleEN][aggregate.StatusNew], project.StatusID)

	require.NotNil(t, project.Business)
	require.NotNil(t, project.Business.VatNumber)
	assert.Equal(t, "12345678-1-42", *project.Business.VatNumber)
	require.NotNil(t, project.Business.Addresses[0].CountryID)
	assert.Equal(t, "Hungary", *project.Business.Addresses[0].CountryID)
	assert.Equal(t, "Fő utca 1 2/3", project.Business.Addresses[0].Address)

	require.Len(t, project.Orders, 1)
	order := project.Orders[0]
	assert.Equal(t, int64(100_000_101), order.ID)
	assert.Equal(t, int64(101), order.Number)
	assert.Equal(t, "_EN", order.Language)
	assert.Equal(t, "2024-01-15 11:00:00", order.Performance)
	assert.Equal(t, "Paid", order.Status)
	assert.Equal(t, "COD", order.PaymentMethod)
	assert.Equal(t, Customer{
		Name:       "Jane Doe",
		CountryID:  "Hungary",
		PostalCode: "1011",
		City:       "Budapest",
		Address:    "Fő utca 1 2/3",
	}, order.Customer)
	assert.Equal(t, "GLS", order.Project.ShippingMethod)

	products := order.Products.Items
	require.Len(t, products, 3)
	assert.Equal(t, Product{
		ID:          100_000_055,
		Name:        "Ring",
		PriceNet:    "500",
		Quantity:    2,
		SKU:         "SKU-1",
		Description: "Tom&#039;s &lt;b&gt;&quot;best&quot;&lt;/b&gt; &amp; more",
		Unit:        "pcs",
		VAT:         "27%",
		FolderName:  "Webshop",
	}, products[0])
	assert.Equal(t, "Shipping: GLS", products[1].Name)
	assert.Equal(t, int64(110_000_002), products[1].ID)
	assert.Equal(t, `Coupon: "SALE"`, products[2].Name)
	assert.Equal(t, "-100", products[2].PriceNet)
	assert.Empty(t, products[2].SKU)

	source := companyOrder()
	assert.NoError(t, CheckOrderIntegrity(&source, order, 2))
}

func TestBuildOmitsBusinessWithoutCompany(t *testing.T) {
	order := companyOrder()
	order.Billing.Company = ""

	doc := build(t, testOptions(), order)
	assert.Nil(t, doc.Projects[0].Business)
	assert.Equal(t, "Jane Doe", doc.Projects[0].Name)

	out, err := Encode(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<Business>")
	assert.Contains(t, string(out), "<Contacts><Contact><FirstName>Jane</FirstName>")
}

func TestBuildSkipsDescriptionUnlessSynced(t *testing.T) {
	doc := build(t, testOptions(), companyOrder())
	product := doc.Projects[0].Orders[0].Products.Items[0]
	assert.Equal(t, "SKU-1", product.SKU)
	assert.Empty(t, product.Description)
}

func TestBuildTruncatesEscapedDescription(t *testing.T) {
	opts := testOptions()
	opts.SyncProductDescription = true

	order := companyOrder()
	order.Items = order.Items[:1]
	order.Items[0].(*orderdomain.ProductItem).Product.Description = strings.Repeat("é", 1000) + strings.Repeat("&", 10)

	doc := build(t, opts, order)
	description := doc.Projects[0].Orders[0].Products.Items[0].Description
	assert.Equal(t, 1024, len([]rune(description)))
	assert.True(t, strings.HasSuffix(description, "&amp;&amp;&amp;&amp;&amp"))
}

func TestBuildCustomerFallsBackToShippingAddress(t *testing.T) {
	order := companyOrder()
	order.Billing.City = ""
	order.Shipping = orderdomain.Address{City: "Wien", Postcode: "1010", Country: "AT", Address1: "Ring 1"}

	doc := build(t, testOptions(), order)
	customer := doc.Projects[0].Orders[0].Customer
	assert.Equal(t, "Austria", customer.CountryID)
	assert.Equal(t, "Wien", customer.City)
	assert.Equal(t, "Ring 1", customer.Address)
}

func TestBuildLeavesUnmappedCountryBlank(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	order := companyOrder()
	order.Billing.Country = "XX"

	groups, err := aggregate.GroupByProject([]orderdomain.Order{order})
	require.NoError(t, err)
	builder, err := NewBuilder(zap.New(core), testOptions(), flatTax(27))
	require.NoError(t, err)
	doc, err := builder.Build(groups)
	require.NoError(t, err)

	project := doc.Projects[0]
	assert.Nil(t, project.Business.Addresses[0].CountryID)
	assert.Equal(t, "Budapest", project.Business.Addresses[0].City)
	assert.Equal(t, Customer{Name: "Jane Doe"}, project.Orders[0].Customer)
	assert.Equal(t, 2, logs.Len())
}

func TestBuildCustomFields(t *testing.T) {
	opts := testOptions()
	opts.FieldMappings = feeddomain.ParseMapping("billing_phone:MobilePhone\ncustomer_note:Note")
	opts.EPOEnabled = true
	opts.EPOMappings = feeddomain.ParseMapping("Engraving:EngravingText")

	order := companyOrder()
	// only product lines carry options into the feed
	order.Items[1].Base().Options = []orderdomain.ItemOption{{Name: "Engraving", Value: "Express"}}

	doc := build(t, opts, order)
	out, err := Encode(doc)
	require.NoError(t, err)

	assert.NotContains(t, string(out), "Express")
	assert.Contains(t, string(out),
		"<Project><ShippingMethod>GLS</ShippingMethod><MobilePhone>+3612345678</MobilePhone>"+
			"<Note>Ring the bell</Note><EngravingText>2 x Ring (#1): Love</EngravingText></Project>")
}

func TestBuildGroupsOrdersUnderOneProject(t *testing.T) {
	older := companyOrder()
	older.ID = 90
	older.Billing.Company = ""
	older.Items = older.Items[:1]

	doc := build(t, testOptions(), companyOrder(), older)
	require.Len(t, doc.Projects, 1)
	project := doc.Projects[0]
	assert.Equal(t, DefaultProjectStatusIDs[feeddomain.LocaleEN][aggregate.StatusPromising], project.StatusID)
	assert.NotNil(t, project.Business, "project fields come from the latest order")
	require.Len(t, project.Orders, 2)
	assert.Equal(t, int64(101), project.Orders[0].Number)
	assert.Equal(t, int64(90), project.Orders[1].Number)
}

func TestBuildRejectsReservedIDReuseAcrossOrders(t *testing.T) {
	first := companyOrder()
	first.Items = []orderdomain.Item{&orderdomain.FeeItem{ItemBase: orderdomain.ItemBase{ID: 5, Name: "Wrap"}, Total: "10"}}
	second := first
	second.ID = 102
	second.CustomerID = 8

	groups, err := aggregate.GroupByProject([]orderdomain.Order{first, second})
	require.NoError(t, err)
	builder, err := NewBuilder(zap.NewNop(), testOptions(), flatTax(27))
	require.NoError(t, err)

	_, err = builder.Build(groups)
	assert.ErrorIs(t, err, feeddomain.ErrRange)
}

func TestNewBuilderValidatesOptions(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"missing locale", func(o *Options) { o.Locale = "" }},
		{"unknown locale", func(o *Options) { o.Locale = "DE" }},
		{"missing category", func(o *Options) { o.CategoryID = "" }},
		{"missing folder", func(o *Options) { o.FolderName = " " }},
		{"shop out of range", func(o *Options) { o.ShopID = 100 }},
		{"unknown field", func(o *Options) { o.FieldMappings = []feeddomain.FieldMapping{{Source: "nope", Target: "X"}} }},
		{"bad element name", func(o *Options) {
			o.FieldMappings = []feeddomain.FieldMapping{{Source: "billing_city", Target: "1City"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.modify(&opts)
			_, err := NewBuilder(zap.NewNop(), opts, flatTax(0))
			assert.ErrorIs(t, err, feeddomain.ErrConfiguration)
		})
	}
}

func TestBuildFailsOnMissingStatusID(t *testing.T) {
	opts := testOptions()
	opts.ProjectStatusIDs = map[aggregate.Status]string{aggregate.StatusNew: ""}

	groups, err := aggregate.GroupByProject([]orderdomain.Order{companyOrder()})
	require.NoError(t, err)
	builder, err := NewBuilder(zap.NewNop(), opts, flatTax(27))
	require.NoError(t, err)

	_, err = builder.Build(groups)
	assert.ErrorIs(t, err, feeddomain.ErrDomain)
}

func TestEncodeIsDeterministic(t *testing.T) {
	orders := []orderdomain.Order{companyOrder()}

	first, err := Encode(build(t, testOptions(), orders...))
	require.NoError(t, err)
	second, err := Encode(build(t, testOptions(), orders...))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(string(first), Header+"<Projects><Project Id=\"100000007\">"))
}

func TestCheckOrderIntegrityDetectsMismatch(t *testing.T) {
	order := companyOrder()
	doc := build(t, testOptions(), order)
	node := doc.Projects[0].Orders[0]

	order.Total = "1400"
	assert.ErrorIs(t, CheckOrderIntegrity(&order, node, 2), feeddomain.ErrDomain)

	order.Total = "1397"
	node.Products.Items[0].VAT = "27.5%"
	assert.ErrorIs(t, CheckOrderIntegrity(&order, node, 2), feeddomain.ErrDomain)
}
