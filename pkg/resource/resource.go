package resource

import (
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/konnektr-io/rest-resource/pkg/rest"
)

// Kind selects how the reducer folds a resolved record.
type Kind string

const (
	KindFetch  Kind = "fetch"
	KindGet    Kind = "get"
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// TransformFunc rewrites a decoded response body before it is dispatched.
type TransformFunc func(body any) (any, error)

// ActionDeclaration describes one operation of a resource.
type ActionDeclaration struct {
	ID string
	Options
	// Kind defaults to the ID when it names a known kind.
	Kind Kind
	// ResponsePath is a gjson path narrowing successful JSON responses.
	ResponsePath string
	Transform    TransformFunc
}

// kind returns the reducer behavior of the declaration, or "" for custom
// actions folded by their isArray option.
func (d ActionDeclaration) kind() Kind {
	if d.Kind != "" {
		return d.Kind
	}
	switch k := Kind(strings.ToLower(d.ID)); k {
	case KindFetch, KindGet, KindCreate, KindUpdate, KindDelete:
		return k
	}
	return ""
}

// ResourceConfig holds the parameters shared by every action of a resource.
type ResourceConfig struct {
	Name string
	// PluralName defaults to Name + "s".
	PluralName string
	// URL is the base URL template.
	URL string
	// IDKey is the record field holding identifiers. Defaults to "id".
	IDKey    string
	Defaults Options
	Auth     *rest.ResolvedAuthConfig
}

func (c ResourceConfig) pluralName() string {
	if c.PluralName != "" || c.Name == "" {
		return c.PluralName
	}
	return c.Name + "s"
}

func (c ResourceConfig) idKey() string {
	if c.IDKey == "" {
		return "id"
	}
	return c.IDKey
}

// Option configures the factories.
type Option func(*settings)

type settings struct {
	transport rest.Transport
	log       logr.Logger
	metrics   *MetricsCollector
	headers   *HeaderStore
	now       func() time.Time
}

func newSettings(opts []Option) *settings {
	s := &settings{
		log:     logr.Discard(),
		headers: DefaultHeaders,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.transport == nil {
		s.transport = rest.NewRESTClient()
	}
	return s
}

// WithTransport sets the transport performing HTTP exchanges.
func WithTransport(t rest.Transport) Option {
	return func(s *settings) {
		s.transport = t
	}
}

// WithLogger sets the logger. Records are logged at V(1).
func WithLogger(log logr.Logger) Option {
	return func(s *settings) {
		s.log = log
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *MetricsCollector) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithDefaultHeaders replaces DefaultHeaders as the lowest header layer.
func WithDefaultHeaders(store *HeaderStore) Option {
	return func(s *settings) {
		if store != nil {
			s.headers = store
		}
	}
}

// WithClock sets the source of completion timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// Resource bundles the generated types, action creators and reducer of one
// declaration set.
type Resource struct {
	Config       ResourceConfig
	Declarations []ActionDeclaration
	// Types maps action IDs to event types.
	Types map[string]string
	// Names maps action IDs to action creator names.
	Names   map[string]string
	Actions map[string]ActionCreator
	Reducer Reducer
}

// NewResource generates the types, action creators and reducer for decls.
func NewResource(config ResourceConfig, decls []ActionDeclaration, opts ...Option) *Resource {
	return &Resource{
		Config:       config,
		Declarations: decls,
		Types:        CreateTypes(decls, config),
		Names:        CreateNames(decls, config),
		Actions:      CreateActions(decls, config, opts...),
		Reducer:      CreateReducer(decls, config),
	}
}

// CreateTypes maps every action ID to its event type.
func CreateTypes(decls []ActionDeclaration, config ResourceConfig) map[string]string {
	types := make(map[string]string, len(decls))
	for _, decl := range decls {
		types[decl.ID] = ActionType(decl.ID, config.Name)
	}
	return types
}

// CreateNames maps every action ID to the name of its creator.
func CreateNames(decls []ActionDeclaration, config ResourceConfig) map[string]string {
	resolver := NewResolver(config, nil)
	names := make(map[string]string, len(decls))
	for _, decl := range decls {
		names[decl.ID] = ActionName(decl.ID, config.Name, config.pluralName(), resolver.StaticIsArray(decl))
	}
	return names
}

// Action returns the creator for actionID.
func (r *Resource) Action(actionID string) (ActionCreator, bool) {
	name, ok := r.Names[actionID]
	if !ok {
		return nil, false
	}
	creator, ok := r.Actions[name]
	return creator, ok
}
