package domain

import "strings"

// fieldNames lists the order fields that may be mapped onto CRM fields.
var fieldNames = []string{
	"billing_address_1",
	"billing_address_2",
	"billing_city",
	"billing_company",
	"billing_country",
	"billing_email",
	"billing_first_name",
	"billing_last_name",
	"billing_phone",
	"billing_postcode",
	"billing_state",
	"customer_note",
	"formatted_billing_address",
	"formatted_billing_full_name",
	"formatted_shipping_address",
	"formatted_shipping_full_name",
	"payment_method",
	"payment_method_title",
	"shipping_address_1",
	"shipping_address_2",
	"shipping_city",
	"shipping_company",
	"shipping_country",
	"shipping_first_name",
	"shipping_last_name",
	"shipping_method",
	"shipping_postcode",
	"shipping_state",
}

func IsField(name string) bool {
	for _, field := range fieldNames {
		if field == name {
			return true
		}
	}
	return false
}

// Field returns the value of a mappable order field.
func (o *Order) Field(name string) (string, bool) {
	if prefix, rest, ok := strings.Cut(name, "_"); ok && (prefix == "billing" || prefix == "shipping") {
		addr := o.Billing
		if prefix == "shipping" {
			addr = o.Shipping
		}
		if rest == "method" {
			if prefix == "shipping" {
				return o.ShippingMethod(), true
			}
			return "", false
		}
		return addressField(addr, rest)
	}

	switch name {
	case "customer_note":
		return o.CustomerNote, true
	case "payment_method":
		return o.PaymentMethod, true
	case "payment_method_title":
		return o.PaymentMethodTitle, true
	case "formatted_billing_address":
		return formatAddress(o.Billing), true
	case "formatted_shipping_address":
		return formatAddress(o.Shipping), true
	case "formatted_billing_full_name":
		return strings.TrimSpace(o.Billing.FirstName + " " + o.Billing.LastName), true
	case "formatted_shipping_full_name":
		return strings.TrimSpace(o.Shipping.FirstName + " " + o.Shipping.LastName), true
	}
	return "", false
}

func addressField(addr Address, name string) (string, bool) {
	switch name {
	case "first_name":
		return addr.FirstName, true
	case "last_name":
		return addr.LastName, true
	case "company":
		return addr.Company, true
	case "address_1":
		return addr.Address1, true
	case "address_2":
		return addr.Address2, true
	case "city":
		return addr.City, true
	case "state":
		return addr.State, true
	case "postcode":
		return addr.Postcode, true
	case "country":
		return addr.Country, true
	case "email":
		return addr.Email, true
	case "phone":
		return addr.Phone, true
	}
	return "", false
}

func formatAddress(addr Address) string {
	parts := []string{
		strings.TrimSpace(addr.FirstName + " " + addr.LastName),
		addr.Company,
		addr.Address1,
		addr.Address2,
		strings.TrimSpace(addr.Postcode + " " + addr.City),
		addr.State,
		addr.Country,
	}
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, ", ")
}
