package rest

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/spf13/cast"
)

// urlParamPattern matches ":token" placeholders. A leading backslash escapes the colon.
var urlParamPattern = regexp.MustCompile(`(\\)?:([A-Za-z_][A-Za-z0-9_]*)`)

// TemplateProcessor renders Go templates with the sprig function map.
type TemplateProcessor struct{}

// NewTemplateProcessor creates a new TemplateProcessor
func NewTemplateProcessor() *TemplateProcessor {
	return &TemplateProcessor{}
}

// ProcessTemplate processes a Go template with the given data
func (tp *TemplateProcessor) ProcessTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("url").Funcs(sprig.TxtFuncMap()).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// BuildURL renders a URL template against params and appends query.
//
// Templates containing "{{" are first rendered as Go templates with params as
// data. Then every ":token" is replaced with the path-escaped value of
// params[token]; tokens without a value are dropped together with their leading
// slash. Query parameters are appended in key order.
func (tp *TemplateProcessor) BuildURL(tmpl string, params map[string]any, query map[string]string) (string, error) {
	if tmpl == "" {
		return "", fmt.Errorf("empty URL template")
	}

	rendered := tmpl
	if strings.Contains(tmpl, "{{") {
		var err error
		rendered, err = tp.ProcessTemplate(tmpl, params)
		if err != nil {
			return "", fmt.Errorf("failed to render URL template: %w", err)
		}
	}

	base, rawQuery, _ := strings.Cut(rendered, "?")
	base = substituteParams(base, params)
	if !strings.HasSuffix(tmpl, "/") {
		base = trimTrailingSlash(base)
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", base, err)
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("invalid query in URL %q: %w", rendered, err)
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values.Set(k, query[k])
	}
	u.RawQuery = values.Encode()

	return u.String(), nil
}

func substituteParams(path string, params map[string]any) string {
	var out strings.Builder
	last := 0
	for _, m := range urlParamPattern.FindAllStringSubmatchIndex(path, -1) {
		start, end := m[0], m[1]
		out.WriteString(path[last:start])
		last = end

		if m[2] >= 0 {
			// escaped colon, keep the literal text without the backslash
			out.WriteString(path[start+1 : end])
			continue
		}

		name := path[m[4]:m[5]]
		value, ok := lookupParam(params, name)
		if ok {
			out.WriteString(url.PathEscape(value))
			continue
		}

		// drop the segment separator preceding a missing token
		s := out.String()
		if strings.HasSuffix(s, "/") && !strings.HasSuffix(s, "://") {
			out.Reset()
			out.WriteString(s[:len(s)-1])
		}
	}
	out.WriteString(path[last:])
	return out.String()
}

func lookupParam(params map[string]any, name string) (string, bool) {
	v, ok := params[name]
	if !ok || v == nil {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}

func trimTrailingSlash(u string) string {
	scheme, rest, found := strings.Cut(u, "://")
	if !found {
		return strings.TrimRight(u, "/")
	}
	host, path, hasPath := strings.Cut(rest, "/")
	if !hasPath {
		return u
	}
	path = strings.TrimRight(path, "/")
	if path == "" {
		return scheme + "://" + host
	}
	return scheme + "://" + host + "/" + path
}

// JoinURL resolves an action URL against the resource URL. Templates starting
// with "./" are appended to base; anything else replaces it.
func JoinURL(base, action string) string {
	if action == "" {
		return base
	}
	if rel, ok := strings.CutPrefix(action, "./"); ok {
		base, _, _ = strings.Cut(base, "?")
		return strings.TrimRight(base, "/") + "/" + rel
	}
	return action
}
