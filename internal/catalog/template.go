package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderRE matches ${name} references inside an emission template.
var placeholderRE = regexp.MustCompile(`\$\{(\w+)\}`)

// TemplateRefs returns the socket names referenced by a template, in order
// of first appearance.
func TemplateRefs(tmpl string) []string {
	var refs []string
	seen := make(map[string]bool)
	for _, m := range placeholderRE.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			refs = append(refs, m[1])
		}
	}
	return refs
}

// ExpandTemplate substitutes every ${name} placeholder using resolve. The
// first resolution error aborts the expansion.
func ExpandTemplate(tmpl string, resolve func(name string) (string, error)) (string, error) {
	var sb strings.Builder
	rest := tmpl
	for {
		loc := placeholderRE.FindStringSubmatchIndex(rest)
		if loc == nil {
			sb.WriteString(rest)
			return sb.String(), nil
		}
		sb.WriteString(rest[:loc[0]])
		name := rest[loc[2]:loc[3]]
		val, err := resolve(name)
		if err != nil {
			return "", fmt.Errorf("placeholder ${%s}: %w", name, err)
		}
		sb.WriteString(val)
		rest = rest[loc[1]:]
	}
}
