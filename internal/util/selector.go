package util

import (
	"fmt"
	"strings"
)

// ActionRef selects actions by resource name and action ID. An empty field or
// "*" matches anything.
type ActionRef struct {
	Resource string
	Action   string
}

// Matches reports whether the ref selects actionID of resourceName.
func (r ActionRef) Matches(resourceName, actionID string) bool {
	return matchPart(r.Resource, resourceName) && matchPart(r.Action, actionID)
}

func (r ActionRef) String() string {
	if r.Resource == "" {
		return r.Action
	}
	return r.Resource + "/" + r.Action
}

func matchPart(pattern, value string) bool {
	return pattern == "" || pattern == "*" || pattern == value
}

// ParseActionRefs parses a semicolon-separated list of "resource/action" or
// "action" patterns. Invalid entries are skipped. Returns an error if no valid
// refs are found.
func ParseActionRefs(pattern string) ([]ActionRef, error) {
	var refs []ActionRef
	for entry := range strings.SplitSeq(pattern, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "/")
		var ref ActionRef
		switch len(parts) {
		case 1:
			ref.Action = parts[0]
		case 2:
			ref.Resource = strings.TrimSpace(parts[0])
			ref.Action = parts[1]
		}
		ref.Action = strings.TrimSpace(ref.Action)
		// Invalid patterns are skipped
		if ref.Action == "" {
			continue
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no valid action refs specified")
	}
	return refs, nil
}

// MatchAny reports whether any of refs selects actionID of resourceName. No
// refs select everything.
func MatchAny(refs []ActionRef, resourceName, actionID string) bool {
	if len(refs) == 0 {
		return true
	}
	for _, ref := range refs {
		if ref.Matches(resourceName, actionID) {
			return true
		}
	}
	return false
}
