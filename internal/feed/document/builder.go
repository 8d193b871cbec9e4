// Package document renders project groups into the CRM sync feed.
package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
	"unicode/utf8"

	"github.com/smallbiznis/crmfeed/internal/feed/aggregate"
	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
	"github.com/smallbiznis/crmfeed/internal/feed/identity"
	"github.com/smallbiznis/crmfeed/internal/feed/naming"
	orderdomain "github.com/smallbiznis/crmfeed/internal/order/domain"
	"go.uber.org/zap"
)

const (
	// TimeZone is the zone order dates are exported in.
	TimeZone = "Europe/Budapest"
	// PerformanceLayout formats the order date.
	PerformanceLayout = "2006-01-02 15:04:05"
	// MaxDescriptionLength caps the escaped product description, in characters.
	MaxDescriptionLength = 1024
	// VatNumberMeta is the order meta key holding the customer's tax number.
	VatNumberMeta = "_billing_tax_number"
)

// Options are the integration settings a build depends on.
type Options struct {
	Locale                 feeddomain.Locale
	ShopID                 int
	CategoryID             string
	FolderName             string
	SyncProductDescription bool
	// ProjectStatusIDs overrides DefaultProjectStatusIDs for the locale.
	ProjectStatusIDs map[aggregate.Status]string
	FieldMappings    []feeddomain.FieldMapping
	EPOEnabled       bool
	EPOMappings      []feeddomain.FieldMapping
	VATNumberEnabled bool
	BaseCountry      string
}

// Validate fails with a configuration error before any order is touched.
func (o Options) Validate() error {
	if o.Locale == "" {
		return feeddomain.ConfigErrorf(`Missing option "locale"`)
	}
	if !o.Locale.Valid() {
		return feeddomain.ConfigErrorf("Unexpected locale '%s'", o.Locale)
	}
	if strings.TrimSpace(o.CategoryID) == "" {
		return feeddomain.ConfigErrorf(`Missing option "category_id"`)
	}
	if strings.TrimSpace(o.FolderName) == "" {
		return feeddomain.ConfigErrorf(`Missing option "folder_name"`)
	}
	if o.ShopID < 0 || o.ShopID > identity.MaxShopID {
		return feeddomain.ConfigErrorf("Option \"shop_id\" must be between 0 and %d", identity.MaxShopID)
	}
	for _, mapping := range o.FieldMappings {
		if !orderdomain.IsField(mapping.Source) {
			return feeddomain.ConfigErrorf("Unknown order field '%s'", mapping.Source)
		}
		if !feeddomain.IsValidXMLName(mapping.Target) {
			return feeddomain.ConfigErrorf("Invalid CRM field name '%s'", mapping.Target)
		}
	}
	for _, mapping := range o.EPOMappings {
		if !feeddomain.IsValidXMLName(mapping.Target) {
			return feeddomain.ConfigErrorf("Invalid CRM field name '%s'", mapping.Target)
		}
	}
	return nil
}

// Builder turns project groups into the document tree. A Builder holds no
// state between builds, so the same input always renders the same bytes.
type Builder struct {
	log      *zap.Logger
	opts     Options
	taxes    aggregate.TaxResolver
	unit     string
	statuses map[aggregate.Status]string
	zone     *time.Location
	epo      map[string]string
}

func NewBuilder(log *zap.Logger, opts Options, taxes aggregate.TaxResolver) (*Builder, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	unit, err := naming.Unit(opts.Locale)
	if err != nil {
		return nil, err
	}
	zone, err := time.LoadLocation(TimeZone)
	if err != nil {
		return nil, err
	}

	statuses := make(map[aggregate.Status]string)
	for status, id := range DefaultProjectStatusIDs[opts.Locale] {
		statuses[status] = id
	}
	for status, id := range opts.ProjectStatusIDs {
		statuses[status] = id
	}

	epo := make(map[string]string, len(opts.EPOMappings))
	for _, mapping := range opts.EPOMappings {
		epo[mapping.Source] = mapping.Target
	}

	return &Builder{
		log:      log,
		opts:     opts,
		taxes:    taxes,
		unit:     unit,
		statuses: statuses,
		zone:     zone,
		epo:      epo,
	}, nil
}

// Build renders every group. Any error aborts the whole document.
func (b *Builder) Build(groups []aggregate.ProjectGroup) (*Projects, error) {
	doc := &Projects{Projects: make([]Project, 0, len(groups))}
	reserved := aggregate.NewReservedIDs()

	for _, group := range groups {
		if len(group.Orders) == 0 {
			continue
		}
		project, err := b.buildProject(group, reserved)
		if err != nil {
			return nil, err
		}
		doc.Projects = append(doc.Projects, project)
	}
	return doc, nil
}

func (b *Builder) buildProject(group aggregate.ProjectGroup, reserved *aggregate.ReservedIDs) (Project, error) {
	latest := group.Latest()

	id, err := identity.WithShopOffset(group.ProjectID, b.opts.ShopID)
	if err != nil {
		return Project{}, err
	}
	status := aggregate.ProjectStatus(len(group.Orders))
	statusID, ok := b.statuses[status]
	if !ok || statusID == "" {
		return Project{}, feeddomain.DomainErrorf("Unexpected status '%s' in locale '%s'", status, b.opts.Locale)
	}

	project := Project{
		ID:         id,
		Name:       naming.BillingName(b.opts.Locale, latest),
		CategoryID: b.opts.CategoryID,
		StatusID:   statusID,
		Business:   b.buildBusiness(latest),
		Contacts: []Contact{{
			FirstName: latest.Billing.FirstName,
			LastName:  latest.Billing.LastName,
			Emails:    []Value{{Value: latest.Billing.Email}},
			Phones:    []Value{{Value: latest.Billing.Phone}},
		}},
		Orders: make([]Order, 0, len(group.Orders)),
	}

	for _, order := range group.Orders {
		node, err := b.buildOrder(order, reserved)
		if err != nil {
			return Project{}, err
		}
		project.Orders = append(project.Orders, node)
	}
	return project, nil
}

func (b *Builder) buildBusiness(latest *orderdomain.Order) *Business {
	if latest.Billing.Company == "" {
		return nil
	}

	business := &Business{Name: latest.Billing.Company}
	if b.opts.VATNumberEnabled {
		vat := latest.MetaValue(VatNumberMeta)
		business.VatNumber = &vat
	}

	address := Address{
		PostalCode: latest.Billing.Postcode,
		City:       latest.Billing.City,
		Address:    latest.Billing.Street(),
	}
	if country, ok := b.country(latest.ID, latest.Billing.Country); ok {
		address.CountryID = &country
	}
	business.Addresses = []Address{address}
	business.Emails = []Value{{Value: latest.Billing.Email}}
	business.Phones = []Value{{Value: latest.Billing.Phone}}
	return business
}

// country resolves the country name, using the base country for an empty
// code. Unmapped codes are logged and left blank.
func (b *Builder) country(orderID int64, code string) (string, bool) {
	if code == "" {
		code = b.opts.BaseCountry
	}
	name, err := naming.CountryName(b.opts.Locale, code)
	if err != nil {
		b.log.Warn("country left blank",
			zap.Int64("order_id", orderID),
			zap.String("country", code),
			zap.Error(err),
		)
		return "", false
	}
	return name, true
}

func (b *Builder) buildOrder(order *orderdomain.Order, reserved *aggregate.ReservedIDs) (Order, error) {
	id, err := identity.WithShopOffset(order.ID, b.opts.ShopID)
	if err != nil {
		return Order{}, err
	}

	payment := PaymentMethods[order.PaymentMethod]
	node := Order{
		ID:            id,
		Number:        order.ID,
		CurrencyCode:  order.Currency,
		Language:      b.opts.Locale.Language(),
		Performance:   order.CreatedAt.In(b.zone).Format(PerformanceLayout),
		Status:        mapOrderStatus(order.Status),
		PaymentMethod: payment,
		Customer:      b.buildCustomer(order),
		Project:       OrderProject{ShippingMethod: order.ShippingMethod()},
	}

	for _, mapping := range b.opts.FieldMappings {
		value, ok := order.Field(mapping.Source)
		if !ok {
			return Order{}, feeddomain.ConfigErrorf("Unknown order field '%s' (Order #%d)", mapping.Source, order.ID)
		}
		node.Project.Set(mapping.Target, value)
	}
	if b.opts.EPOEnabled {
		b.addProductOptions(&node.Project, order)
	}

	lines, err := aggregate.MergeLines(order, b.taxes)
	if err != nil {
		return Order{}, err
	}
	node.Products.Items = make([]Product, 0, len(lines))
	for _, line := range lines {
		if err := reserved.Claim(line.NodeID, order.ID); err != nil {
			return Order{}, err
		}
		product, err := b.buildProduct(line)
		if err != nil {
			return Order{}, fmt.Errorf("%w (Order #%d, %s)", err, order.ID, orderdomain.Describe(line.Item))
		}
		node.Products.Items = append(node.Products.Items, product)
	}
	return node, nil
}

// buildCustomer takes the billing address, or the shipping address when
// billing has no city. Address fields are kept only if the country resolved.
func (b *Builder) buildCustomer(order *orderdomain.Order) Customer {
	customer := Customer{Name: naming.CustomerName(b.opts.Locale, order)}

	var address *orderdomain.Address
	switch {
	case order.Billing.City != "":
		address = &order.Billing
	case order.Shipping.City != "":
		address = &order.Shipping
	default:
		return customer
	}

	country, ok := b.country(order.ID, address.Country)
	if !ok {
		return customer
	}
	customer.CountryID = country
	customer.PostalCode = address.Postcode
	customer.City = address.City
	customer.Address = address.Street()
	return customer
}

// addProductOptions writes mapped product options, one line per item, grouped
// by CRM field in first-seen order.
func (b *Builder) addProductOptions(project *OrderProject, order *orderdomain.Order) {
	var (
		fields []string
		values = make(map[string][]string)
	)
	for _, item := range order.Items {
		product, ok := item.(*orderdomain.ProductItem)
		if !ok {
			continue
		}
		for _, option := range product.Options {
			field, ok := b.epo[option.Name]
			if !ok {
				continue
			}
			if _, seen := values[field]; !seen {
				fields = append(fields, field)
			}
			values[field] = append(values[field], fmt.Sprintf("%d x %s (#%d): %s",
				product.Quantity, product.Name, product.ID, option.Value))
		}
	}
	for _, field := range fields {
		project.Set(field, strings.Join(values[field], "\n"))
	}
}

func (b *Builder) buildProduct(line aggregate.Line) (Product, error) {
	id, err := identity.WithShopOffset(line.NodeID, b.opts.ShopID)
	if err != nil {
		return Product{}, err
	}

	product := Product{
		ID:         id,
		PriceNet:   line.UnitPrice.String(),
		Quantity:   line.Quantity,
		Unit:       b.unit,
		VAT:        strconv.FormatFloat(line.TaxPercent, 'f', -1, 64) + "%",
		FolderName: b.opts.FolderName,
	}

	switch v := line.Item.(type) {
	case *orderdomain.ProductItem:
		product.Name = v.Name
		if v.Product != nil {
			product.SKU = v.Product.SKU
			if b.opts.SyncProductDescription {
				product.Description = truncate(escapeHTML(v.Product.Description), MaxDescriptionLength)
			}
		}
	case *orderdomain.FeeItem:
		product.Name = v.Name
	case *orderdomain.ShippingItem:
		product.Name = "Shipping: " + v.MethodTitle
	case *orderdomain.CouponItem:
		product.Name = `Coupon: "` + v.Code + `"`
	default:
		return Product{}, feeddomain.DomainErrorf("Unexpected item class: '%T'", line.Item)
	}
	return product, nil
}

var htmlEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`"`, "&quot;",
	`'`, "&#039;",
	`<`, "&lt;",
	`>`, "&gt;",
)

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// Encode serializes the document with its XML declaration.
func Encode(doc *Projects) ([]byte, error) {
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(Header) + len(body) + 1)
	buf.WriteString(Header)
	buf.Write(body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
