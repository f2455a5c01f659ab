package resource

import (
	resourcev1alpha1 "github.com/konnektr-io/rest-resource/api/v1alpha1"
	"github.com/konnektr-io/rest-resource/pkg/rest"
)

// FromManifest converts a RESTResource manifest into a resource configuration
// and its declarations. auth is the resolved form of the manifest's
// authenticationRef, if any. The resource name falls back to metadata.name.
func FromManifest(res *resourcev1alpha1.RESTResource, auth *rest.ResolvedAuthConfig) (ResourceConfig, []ActionDeclaration) {
	spec := res.Spec

	name := spec.Name
	if name == "" {
		name = res.Name
	}

	config := ResourceConfig{
		Name:       name,
		PluralName: spec.PluralName,
		URL:        spec.URL,
		IDKey:      spec.GetIDKey(),
		Defaults: Options{
			Credentials: NonEmpty(spec.Credentials),
		},
		Auth: auth,
	}
	if len(spec.Headers) > 0 {
		config.Defaults.Headers = Literal(spec.Headers)
	}
	if len(spec.Query) > 0 {
		config.Defaults.Query = Literal(spec.Query)
	}

	decls := make([]ActionDeclaration, 0, len(spec.Actions))
	for _, action := range spec.Actions {
		decl := ActionDeclaration{
			ID: action.ID,
			Options: Options{
				URL:            NonEmpty(action.URL),
				Method:         NonEmpty(action.Method),
				Credentials:    NonEmpty(action.Credentials),
				IsArray:        Ptr(action.IsArray),
				AssignResponse: Ptr(action.AssignResponse),
			},
			Kind:         Kind(action.Kind),
			ResponsePath: action.ResponsePath,
		}
		if len(action.Headers) > 0 {
			decl.Headers = Literal(action.Headers)
		}
		if len(action.Query) > 0 {
			decl.Query = Literal(action.Query)
		}
		decls = append(decls, decl)
	}

	return config, decls
}
