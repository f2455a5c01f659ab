package resource

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TypePrefix scopes every event type emitted by this package.
const TypePrefix = "@@resource"

var (
	titleCaser = cases.Title(language.Und, cases.NoLower)
	upperCaser = cases.Upper(language.Und)
)

// ActionName derives the name of the creator for actionID. With a resource
// name the result is actionID followed by the capitalized resource name, or the
// plural name when isArray; e.g. fetchUsers, getUser. Without one it is actionID.
func ActionName(actionID, resourceName, pluralName string, isArray bool) string {
	if resourceName == "" {
		return actionID
	}
	name := resourceName
	if isArray {
		name = pluralName
		if name == "" {
			name = resourceName + "s"
		}
	}
	return actionID + titleCaser.String(name)
}

// ActionType derives the event type of actionID:
// @@resource/<RESOURCE>/<ACTION> in upper snake case, or @@resource/<ACTION>
// without a resource name.
func ActionType(actionID, resourceName string) string {
	if resourceName == "" {
		return TypePrefix + "/" + upperSnakeCase(actionID)
	}
	return TypePrefix + "/" + upperSnakeCase(resourceName) + "/" + upperSnakeCase(actionID)
}

// upperSnakeCase converts camelCase, kebab-case and spaced identifiers to
// UPPER_SNAKE_CASE.
func upperSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '_' || r == '.':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			continue
		case unicode.IsUpper(r) && i > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if (unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower)) && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	return upperCaser.String(strings.TrimSuffix(b.String(), "_"))
}
