// Package v1alpha1 contains the manifest types describing REST resources and the
// actions declared on them.
package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// GroupVersion is the apiVersion expected on RESTResource manifests.
	GroupVersion = "resource.konnektr.io/v1alpha1"
	// Kind is the kind expected on RESTResource manifests.
	Kind = "RESTResource"
)

// HTTPAuthenticationRef defines how to authenticate HTTP requests. Credentials are
// read from environment variables or files, never stored in the manifest.
type HTTPAuthenticationRef struct {
	// Type of authentication. Supported: basic, bearer, apikey, oauth2
	Type string `json:"type"`
	// Environment variable holding the username (basic auth).
	UsernameEnv string `json:"usernameEnv,omitempty"`
	// Environment variable holding the password (basic auth).
	PasswordEnv string `json:"passwordEnv,omitempty"`
	// Environment variable holding the token (bearer auth).
	TokenEnv string `json:"tokenEnv,omitempty"`
	// File holding the token (bearer auth). Used when TokenEnv is empty or unset.
	TokenFile string `json:"tokenFile,omitempty"`
	// Environment variable holding the API key.
	APIKeyEnv string `json:"apikeyEnv,omitempty"`
	// Header name for API key authentication. Defaults to "X-API-Key".
	APIKeyHeader string `json:"apikeyHeader,omitempty"`
	// Environment variable holding the OAuth2 client ID.
	ClientIDEnv string `json:"clientIdEnv,omitempty"`
	// Environment variable holding the OAuth2 client secret.
	ClientSecretEnv string `json:"clientSecretEnv,omitempty"`
	// Token URL for OAuth2 client credentials flow.
	TokenURL string `json:"tokenUrl,omitempty"`
	// Space-separated OAuth2 scopes.
	Scopes string `json:"scopes,omitempty"`
}

// ActionSpec declares one operation on the resource. Unset fields inherit from
// the resource defaults and the built-in defaults for the action ID.
type ActionSpec struct {
	// ID of the action, e.g. fetch, get, create, update, delete.
	ID string `json:"id"`
	// HTTP method.
	Method string `json:"method,omitempty"`
	// URL template. Relative templates ("./:id/run") are joined to the resource URL.
	URL string `json:"url,omitempty"`
	// Query parameters added to every request of this action.
	Query map[string]string `json:"query,omitempty"`
	// Headers added to every request of this action.
	Headers map[string]string `json:"headers,omitempty"`
	// Credentials policy: omit, same-origin or include.
	Credentials string `json:"credentials,omitempty"`
	// IsArray marks the response as a collection.
	IsArray *bool `json:"isArray,omitempty"`
	// AssignResponse merges the response body into the existing record.
	AssignResponse *bool `json:"assignResponse,omitempty"`
	// Kind selects how the reducer folds the response. Derived from ID when empty.
	Kind string `json:"kind,omitempty"`
	// ResponsePath is a gjson path selecting the payload inside a JSON response.
	// Example: "data" if the response is {"data": [...]}
	ResponsePath string `json:"responsePath,omitempty"`
}

// SyncSpec names an action the sync controller invokes on every poll.
type SyncSpec struct {
	// Action ID to invoke.
	Action string `json:"action"`
	// Context passed to the action (URL params and body fields).
	Context map[string]string `json:"context,omitempty"`
}

// RESTResourceSpec defines the desired state of RESTResource
type RESTResourceSpec struct {
	// Name of the resource, used for action names and event types.
	Name string `json:"name,omitempty"`
	// PluralName used for collection action names. Defaults to Name + "s".
	PluralName string `json:"pluralName,omitempty"`
	// URL template of the resource, e.g. https://api.example.com/users/:id
	URL string `json:"url"`
	// IDKey is the record field holding the identifier. Defaults to "id".
	IDKey string `json:"idKey,omitempty"`
	// Headers shared by all actions.
	Headers map[string]string `json:"headers,omitempty"`
	// Query parameters shared by all actions.
	Query map[string]string `json:"query,omitempty"`
	// Credentials policy shared by all actions.
	Credentials string `json:"credentials,omitempty"`
	// Authentication details.
	AuthenticationRef *HTTPAuthenticationRef `json:"authenticationRef,omitempty"`
	// Actions declared on the resource. Later entries win on name collisions.
	Actions []ActionSpec `json:"actions"`
	// PollInterval defines how often the sync actions run.
	// Format is a duration string like "5m", "1h", "30s".
	PollInterval string `json:"pollInterval,omitempty"`
	// Sync lists the actions invoked on every poll.
	Sync []SyncSpec `json:"sync,omitempty"`
}

// RESTResourceStatus defines the observed state of RESTResource
type RESTResourceStatus struct {
	// Conditions represent the latest available observations of the resource's state.
	Conditions []metav1.Condition `json:"conditions,omitempty"`

	// LastPollTime records when the sync actions last completed successfully.
	LastPollTime *metav1.Time `json:"lastPollTime,omitempty"`

	// Items is the number of records held in the resource's collection.
	Items int `json:"items,omitempty"`

	// ObservedGeneration reflects the generation of the manifest that was last processed.
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`
}

// RESTResource is the Schema for REST resource manifests
type RESTResource struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   RESTResourceSpec   `json:"spec,omitempty"`
	Status RESTResourceStatus `json:"status,omitempty"`
}

// GetIDKey returns the identifier field, defaulting to "id".
func (s *RESTResourceSpec) GetIDKey() string {
	if s.IDKey == "" {
		return "id"
	}
	return s.IDKey
}
