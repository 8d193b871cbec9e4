package domain

import (
	"sort"
	"strconv"
	"strings"
)

// RateTable is an in-memory snapshot of the tax rate table. Lookups do no
// I/O, so a feed build can resolve every line against one snapshot.
type RateTable struct {
	rates []Rate
}

func NewRateTable(rates []Rate) *RateTable {
	sorted := make([]Rate, len(rates))
	copy(sorted, rates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		if sorted[i].RateOrder != sorted[j].RateOrder {
			return sorted[i].RateOrder < sorted[j].RateOrder
		}
		return sorted[i].ID < sorted[j].ID
	})
	return &RateTable{rates: sorted}
}

func (t *RateTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rates)
}

// FindRates returns the rates for a tax class at a location, at most one
// per priority.
func (t *RateTable) FindRates(taxClass string, loc Location) []Rate {
	return t.find(taxClass, loc, false)
}

// FindShippingRates is FindRates restricted to rates that apply to shipping.
func (t *RateTable) FindShippingRates(taxClass string, loc Location) []Rate {
	return t.find(taxClass, loc, true)
}

func (t *RateTable) find(taxClass string, loc Location, shipping bool) []Rate {
	if t == nil {
		return nil
	}

	var (
		found    []Rate
		priority = make(map[int]struct{})
	)
	for _, rate := range t.rates {
		if rate.TaxClass != taxClass {
			continue
		}
		if shipping && !rate.Shipping {
			continue
		}
		if _, taken := priority[rate.Priority]; taken {
			continue
		}
		if !rate.matches(loc) {
			continue
		}
		priority[rate.Priority] = struct{}{}
		found = append(found, rate)
	}
	return found
}

func (r Rate) matches(loc Location) bool {
	if r.Country != "" && !strings.EqualFold(r.Country, loc.Country) {
		return false
	}
	if r.State != "" && !strings.EqualFold(r.State, loc.State) {
		return false
	}
	if r.City != "" && !anyMatch(r.City, func(city string) bool {
		return strings.EqualFold(city, strings.TrimSpace(loc.City))
	}) {
		return false
	}
	if r.Postcode != "" && !anyMatch(r.Postcode, func(pattern string) bool {
		return postcodeMatches(pattern, loc.Postcode)
	}) {
		return false
	}
	return true
}

// anyMatch splits a ";" separated list and reports whether any entry matches.
func anyMatch(list string, match func(string) bool) bool {
	for _, entry := range strings.Split(list, ";") {
		entry = strings.TrimSpace(entry)
		if entry != "" && match(entry) {
			return true
		}
	}
	return false
}

// postcodeMatches supports exact codes, a trailing "*" wildcard and numeric
// "from...to" ranges.
func postcodeMatches(pattern, postcode string) bool {
	code := strings.ToUpper(strings.ReplaceAll(postcode, " ", ""))
	pattern = strings.ToUpper(strings.ReplaceAll(pattern, " ", ""))

	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(code, prefix)
	}
	if from, to, ok := strings.Cut(pattern, "..."); ok {
		lo, errLo := strconv.ParseInt(from, 10, 64)
		hi, errHi := strconv.ParseInt(to, 10, 64)
		value, errValue := strconv.ParseInt(code, 10, 64)
		if errLo != nil || errHi != nil || errValue != nil {
			return false
		}
		return value >= lo && value <= hi
	}
	return pattern == code
}
