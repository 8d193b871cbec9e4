package domain

import "strings"

// Locale is the CRM account locale. It drives name order, country names,
// units and project status ids.
type Locale string

const (
	LocaleEN Locale = "EN"
	LocaleHU Locale = "HU"
	LocaleRO Locale = "RO"
)

func ParseLocale(raw string) (Locale, error) {
	value := Locale(strings.ToUpper(strings.TrimSpace(raw)))
	if value == "" {
		return "", ConfigErrorf(`Missing option "locale"`)
	}
	if !value.Valid() {
		return "", ConfigErrorf("Unexpected locale '%s'", value)
	}
	return value, nil
}

func (l Locale) Valid() bool {
	switch l {
	case LocaleEN, LocaleHU, LocaleRO:
		return true
	default:
		return false
	}
}

// Language is the language tag written on exported orders.
func (l Locale) Language() string {
	return "_" + string(l)
}
