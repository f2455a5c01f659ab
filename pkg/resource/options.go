package resource

import (
	"fmt"

	"dario.cat/mergo"

	"github.com/konnektr-io/rest-resource/pkg/rest"
)

// Option keys recognized by the resolver, in resolution order.
const (
	KeyURL            = "url"
	KeyMethod         = "method"
	KeyQuery          = "query"
	KeyHeaders        = "headers"
	KeyCredentials    = "credentials"
	KeyIsArray        = "isArray"
	KeyAssignResponse = "assignResponse"
)

// Keys lists every recognized option key.
var Keys = []string{KeyURL, KeyMethod, KeyQuery, KeyHeaders, KeyCredentials, KeyIsArray, KeyAssignResponse}

// Options holds one layer of request options. It is used for action
// declarations, resource defaults and per-call overrides alike.
type Options struct {
	URL            Value[string]
	Method         Value[string]
	Query          Value[map[string]string]
	Headers        Value[map[string]string]
	Credentials    Value[string]
	IsArray        Value[bool]
	AssignResponse Value[bool]
}

// ResolvedOptions is the outcome of merging every layer for one call.
type ResolvedOptions struct {
	// URL is the joined URL template, before token substitution.
	URL            string
	Method         string
	Query          map[string]string
	Headers        map[string]string
	Credentials    string
	IsArray        bool
	AssignResponse bool
}

// ReducerOptions returns the subset of options reducers depend on.
func (o ResolvedOptions) ReducerOptions() *ReducerOptions {
	return &ReducerOptions{IsArray: o.IsArray, AssignResponse: o.AssignResponse}
}

// Resolver merges option layers for the actions of one resource. Layers, from
// lowest to highest precedence: the default header store (headers only),
// built-in defaults, the built-in declaration for the action ID, resource
// defaults, the action declaration, the per-call override.
type Resolver struct {
	config  ResourceConfig
	headers *HeaderStore
}

// NewResolver creates a resolver. A nil store means DefaultHeaders.
func NewResolver(config ResourceConfig, headers *HeaderStore) *Resolver {
	if headers == nil {
		headers = DefaultHeaders
	}
	return &Resolver{config: config, headers: headers}
}

// Meta returns the metadata passed to computed values of decl.
func (r *Resolver) Meta(decl ActionDeclaration) Meta {
	return Meta{
		ActionID:     decl.ID,
		ResourceName: r.config.Name,
		PluralName:   r.config.pluralName(),
		URL:          r.config.URL,
	}
}

func (r *Resolver) layers(decl ActionDeclaration, overrides []Options) []Options {
	resourceDefaults := r.config.Defaults
	if !resourceDefaults.URL.IsSet() && r.config.URL != "" {
		resourceDefaults.URL = Literal(r.config.URL)
	}
	layers := []Options{globalDefaults}
	if builtin, ok := defaultActions[decl.ID]; ok {
		layers = append(layers, builtin)
	}
	layers = append(layers, resourceDefaults, decl.Options)
	return append(layers, overrides...)
}

// StaticIsArray resolves isArray from literal layers only. It is used where no
// runtime state exists, such as deriving action names.
func (r *Resolver) StaticIsArray(decl ActionDeclaration) bool {
	layers := r.layers(decl, nil)
	for i := len(layers) - 1; i >= 0; i-- {
		if v, ok := layers[i].IsArray.Static(); ok {
			return v
		}
	}
	return false
}

// Resolve resolves every option key for one call of decl. Overrides are
// applied in order, later ones winning.
func (r *Resolver) Resolve(decl ActionDeclaration, getState GetState, overrides ...Options) (ResolvedOptions, error) {
	layers := r.layers(decl, overrides)
	meta := r.Meta(decl)

	var out ResolvedOptions
	for _, key := range Keys {
		v, err := r.resolveKey(key, layers, getState, meta)
		if err != nil {
			return ResolvedOptions{}, err
		}
		switch key {
		case KeyURL:
			out.URL = v.(string)
		case KeyMethod:
			out.Method = v.(string)
		case KeyQuery:
			out.Query = v.(map[string]string)
		case KeyHeaders:
			out.Headers = v.(map[string]string)
		case KeyCredentials:
			out.Credentials = v.(string)
		case KeyIsArray:
			out.IsArray = v.(bool)
		case KeyAssignResponse:
			out.AssignResponse = v.(bool)
		}
	}
	return out, nil
}

// ResolveOption resolves a single option key for one call of decl.
func (r *Resolver) ResolveOption(key string, decl ActionDeclaration, getState GetState, overrides ...Options) (any, error) {
	return r.resolveKey(key, r.layers(decl, overrides), getState, r.Meta(decl))
}

func (r *Resolver) resolveKey(key string, layers []Options, getState GetState, meta Meta) (any, error) {
	switch key {
	case KeyURL:
		u := resolveScalar(layers, func(o Options) Value[string] { return o.URL }, getState, meta)
		return rest.JoinURL(r.config.URL, u), nil
	case KeyMethod:
		return resolveScalar(layers, func(o Options) Value[string] { return o.Method }, getState, meta), nil
	case KeyCredentials:
		return resolveScalar(layers, func(o Options) Value[string] { return o.Credentials }, getState, meta), nil
	case KeyIsArray:
		return resolveScalar(layers, func(o Options) Value[bool] { return o.IsArray }, getState, meta), nil
	case KeyAssignResponse:
		return resolveScalar(layers, func(o Options) Value[bool] { return o.AssignResponse }, getState, meta), nil
	case KeyQuery:
		return resolveMap(map[string]string{}, layers, func(o Options) Value[map[string]string] { return o.Query }, nil, getState, meta)
	case KeyHeaders:
		return resolveMap(r.headers.Snapshot(), layers, func(o Options) Value[map[string]string] { return o.Headers }, canonicalHeaders, getState, meta)
	default:
		return nil, fmt.Errorf("unknown option key %q", key)
	}
}

// resolveScalar returns the value of the highest layer that resolves to
// something. Lower layers are not evaluated once a value is found.
func resolveScalar[T any](layers []Options, field func(Options) Value[T], getState GetState, meta Meta) T {
	for i := len(layers) - 1; i >= 0; i-- {
		if v, ok := field(layers[i]).Get(getState, meta); ok {
			return v
		}
	}
	var zero T
	return zero
}

// resolveMap shallow-merges every layer over base, higher layers winning per
// key. A non-nil normalize rewrites each layer's keys before merging.
func resolveMap(base map[string]string, layers []Options, field func(Options) Value[map[string]string], normalize func(map[string]string) map[string]string, getState GetState, meta Meta) (map[string]string, error) {
	for _, layer := range layers {
		v, ok := field(layer).Get(getState, meta)
		if !ok || len(v) == 0 {
			continue
		}
		if normalize != nil {
			v = normalize(v)
		}
		if err := mergo.Merge(&base, v, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge option layer: %w", err)
		}
	}
	return base, nil
}
