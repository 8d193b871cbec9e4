package document

import (
	"github.com/smallbiznis/crmfeed/internal/feed/aggregate"
	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
)

// DefaultOrderStatus is used for shop statuses missing from OrderStatuses.
const DefaultOrderStatus = "Issued"

// OrderStatuses maps shop order statuses onto CRM order statuses.
var OrderStatuses = map[string]string{
	"pending":    "Draft",
	"on-hold":    "Issued",
	"processing": "Paid",
	"completed":  "Complete",
	"cancelled":  "Storno",
	"refunded":   "Storno",
	"failed":     "Storno",
	"trash":      "Storno",
}

// PaymentMethods maps shop payment gateways onto CRM payment methods.
// Unknown gateways are exported empty.
var PaymentMethods = map[string]string{
	"bacs":        "Transfer",
	"cod":         "COD",
	"cheque":      "Cheque",
	"paypal":      "PayPal",
	"ppec_paypal": "PayPal",
	"stripe":      "CreditCard",
}

// DefaultProjectStatusIDs are the CRM status ids of a freshly created
// webshop module, per account locale.
var DefaultProjectStatusIDs = map[feeddomain.Locale]map[aggregate.Status]string{
	feeddomain.LocaleEN: {
		aggregate.StatusRegistered: "3000",
		aggregate.StatusNew:        "3001",
		aggregate.StatusPromising:  "3002",
	},
	feeddomain.LocaleHU: {
		aggregate.StatusRegistered: "2500",
		aggregate.StatusNew:        "2501",
		aggregate.StatusPromising:  "2502",
	},
	feeddomain.LocaleRO: {
		aggregate.StatusRegistered: "3500",
		aggregate.StatusNew:        "3501",
		aggregate.StatusPromising:  "3502",
	},
}

func mapOrderStatus(status string) string {
	if mapped, ok := OrderStatuses[status]; ok {
		return mapped
	}
	return DefaultOrderStatus
}
