package domain

import (
	"regexp"
	"strings"
)

var (
	mappingLineRe = regexp.MustCompile(`^([^:]+):([^:]+)$`)
	xmlNameRe     = regexp.MustCompile(`^[A-Z_a-z][A-Z_a-z\-.0-9]*$`)
)

// FieldMapping copies the Source value into the CRM field named Target.
type FieldMapping struct {
	Source string
	Target string
}

// ParseMapping reads "source:target" lines. Both sides are trimmed and
// lines without exactly one colon are skipped. A repeated source keeps its
// first position and takes the last target.
func ParseMapping(text string) []FieldMapping {
	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })

	mappings := make([]FieldMapping, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		match := mappingLineRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		source := strings.TrimSpace(match[1])
		target := strings.TrimSpace(match[2])
		if pos, ok := index[source]; ok {
			mappings[pos].Target = target
			continue
		}
		index[source] = len(mappings)
		mappings = append(mappings, FieldMapping{Source: source, Target: target})
	}
	return mappings
}

// IsValidXMLName reports whether name can be used as an element name in
// the exported document.
func IsValidXMLName(name string) bool {
	return xmlNameRe.MatchString(name)
}
