// Package naming composes the display names written into the feed.
package naming

import (
	"strings"

	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
	orderdomain "github.com/smallbiznis/crmfeed/internal/order/domain"
)

// PersonName orders the parts the way the locale writes names.
func PersonName(locale feeddomain.Locale, first, last string) string {
	if locale == feeddomain.LocaleHU {
		return strings.TrimSpace(last + " " + first)
	}
	return strings.TrimSpace(first + " " + last)
}

// CustomerName uses the billing name, or the shipping name when the
// billing first name is empty.
func CustomerName(locale feeddomain.Locale, order *orderdomain.Order) string {
	first, last := order.Billing.FirstName, order.Billing.LastName
	if first == "" {
		first, last = order.Shipping.FirstName, order.Shipping.LastName
	}
	return PersonName(locale, first, last)
}

// BillingName prefixes the customer name with the company when one is set.
func BillingName(locale feeddomain.Locale, order *orderdomain.Order) string {
	customer := CustomerName(locale, order)

	company := order.Billing.Company
	if company == "" {
		company = order.Shipping.Company
	}
	if company == "" {
		return customer
	}
	if customer == "" {
		return company
	}
	return company + " (" + customer + ")"
}

// CountryName translates an ISO 3166-1 alpha-2 code into the CRM's country
// name for the locale.
func CountryName(locale feeddomain.Locale, code string) (string, error) {
	table, ok := countries[locale]
	if !ok {
		return "", feeddomain.DomainErrorf("Unexpected locale '%s'", locale)
	}
	name, ok := table[strings.ToUpper(code)]
	if !ok {
		return "", feeddomain.DomainErrorf("Unexpected country_code '%s' in locale '%s'", code, locale)
	}
	return name, nil
}

var units = map[feeddomain.Locale]string{
	feeddomain.LocaleEN: "pcs",
	feeddomain.LocaleHU: "db",
	feeddomain.LocaleRO: "buc",
}

// Unit is the unit of measure written on every product row.
func Unit(locale feeddomain.Locale) (string, error) {
	unit, ok := units[locale]
	if !ok {
		return "", feeddomain.ConfigErrorf("Unexpected locale '%s'", locale)
	}
	return unit, nil
}
