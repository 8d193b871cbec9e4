package domain

import (
	"regexp"
	"strconv"
	"strings"
)

var queryRe = regexp.MustCompile(`^(all|\d+(,\d+)*)\.xml$`)

// Query selects the projects a feed covers.
type Query struct {
	All        bool
	ProjectIDs []int64
}

// ParseQuery accepts "all.xml" or a comma separated project id list such as
// "12,50000031.xml". Repeated ids are kept once, in first-seen order.
func ParseQuery(raw string) (Query, error) {
	match := queryRe.FindStringSubmatch(raw)
	if match == nil {
		return Query{}, DomainErrorf("Invalid query: '%s'.", raw)
	}
	if match[1] == "all" {
		return Query{All: true}, nil
	}

	parts := strings.Split(match[1], ",")
	seen := make(map[int64]struct{}, len(parts))
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return Query{}, DomainErrorf("Invalid query: '%s'.", raw)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return Query{ProjectIDs: ids}, nil
}

// String renders the query back into its request form, without the suffix.
func (q Query) String() string {
	if q.All {
		return "all"
	}
	parts := make([]string, 0, len(q.ProjectIDs))
	for _, id := range q.ProjectIDs {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}
