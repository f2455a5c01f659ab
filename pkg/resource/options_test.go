package resource

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noState() any { return nil }

func TestResolver_Precedence(t *testing.T) {
	config := ResourceConfig{
		Name: "user",
		URL:  "https://api.test/users/:id",
		Defaults: Options{
			Credentials: Literal("include"),
			Method:      Literal("PUT"),
		},
	}

	tests := []struct {
		name      string
		decl      ActionDeclaration
		overrides []Options
		expected  ResolvedOptions
	}{
		{
			name: "built-in fetch defaults",
			decl: ActionDeclaration{ID: "fetch", Options: Options{Method: Literal("GET")}},
			expected: ResolvedOptions{
				URL:         "https://api.test/users/:id",
				Method:      "GET",
				Credentials: "include",
				IsArray:     true,
			},
		},
		{
			name: "resource defaults over built-in",
			decl: ActionDeclaration{ID: "create"},
			expected: ResolvedOptions{
				URL:         "https://api.test/users/:id",
				Method:      "PUT",
				Credentials: "include",
			},
		},
		{
			name: "declaration over resource defaults",
			decl: ActionDeclaration{ID: "run", Options: Options{
				Method: Literal("POST"),
				URL:    Literal("./run"),
			}},
			expected: ResolvedOptions{
				URL:         "https://api.test/users/:id/run",
				Method:      "POST",
				Credentials: "include",
			},
		},
		{
			name: "override over declaration, last override wins",
			decl: ActionDeclaration{ID: "get", Options: Options{Method: Literal("GET")}},
			overrides: []Options{
				{Method: Literal("HEAD"), Credentials: Literal("omit")},
				{Method: Literal("OPTIONS")},
			},
			expected: ResolvedOptions{
				URL:         "https://api.test/users/:id",
				Method:      "OPTIONS",
				Credentials: "omit",
			},
		},
		{
			name: "absolute action URL replaces resource URL",
			decl: ActionDeclaration{ID: "search", Options: Options{
				URL:     Literal("https://search.test/users"),
				IsArray: Literal(true),
			}},
			expected: ResolvedOptions{
				URL:         "https://search.test/users",
				Method:      "PUT",
				Credentials: "include",
				IsArray:     true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(config, NewHeaderStore(nil))
			got, err := r.Resolve(tt.decl, noState, tt.overrides...)
			require.NoError(t, err)

			assert.Equal(t, tt.expected.URL, got.URL)
			assert.Equal(t, tt.expected.Method, got.Method)
			assert.Equal(t, tt.expected.Credentials, got.Credentials)
			assert.Equal(t, tt.expected.IsArray, got.IsArray)
			assert.Equal(t, tt.expected.AssignResponse, got.AssignResponse)
		})
	}
}

func TestResolver_MergesHeadersAndQuery(t *testing.T) {
	headers := NewHeaderStore(map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	})
	config := ResourceConfig{
		Name: "user",
		URL:  "https://api.test/users",
		Defaults: Options{
			Headers: Literal(map[string]string{"X-Tenant": "acme", "Accept": "text/plain"}),
			Query:   Literal(map[string]string{"page": "1", "limit": "10"}),
		},
	}
	decl := ActionDeclaration{ID: "fetch", Options: Options{
		Headers: Literal(map[string]string{"X-Tenant": "globex"}),
		Query:   Literal(map[string]string{"page": "2"}),
	}}
	override := Options{
		Headers: Literal(map[string]string{"Authorization": "Bearer t"}),
	}

	got, err := NewResolver(config, headers).Resolve(decl, noState, override)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Accept":        "text/plain",
		"Content-Type":  "application/json",
		"X-Tenant":      "globex",
		"Authorization": "Bearer t",
	}, got.Headers)
	assert.Equal(t, map[string]string{"page": "2", "limit": "10"}, got.Query)

	// layers are not mutated by merging
	v, _ := decl.Headers.Static()
	assert.Equal(t, map[string]string{"X-Tenant": "globex"}, v)
}

func TestResolver_ComputedValues(t *testing.T) {
	config := ResourceConfig{Name: "user", URL: "https://api.test/users"}

	t.Run("computed layer is invoked once with state and meta", func(t *testing.T) {
		calls := 0
		var seen Meta
		decl := ActionDeclaration{ID: "fetch", Options: Options{
			Headers: Computed(func(getState GetState, meta Meta) map[string]string {
				calls++
				seen = meta
				state := getState().(map[string]string)
				return map[string]string{"Authorization": "Bearer " + state["token"]}
			}),
		}}
		getState := func() any { return map[string]string{"token": "abc"} }

		got, err := NewResolver(config, NewHeaderStore(nil)).Resolve(decl, getState)
		require.NoError(t, err)

		assert.Equal(t, 1, calls)
		assert.Equal(t, "Bearer abc", got.Headers["Authorization"])
		assert.Equal(t, Meta{ActionID: "fetch", ResourceName: "user", PluralName: "users", URL: "https://api.test/users"}, seen)
	})

	t.Run("undefined computed value falls through", func(t *testing.T) {
		decl := ActionDeclaration{ID: "get", Options: Options{
			Method: ComputedOptional(func(GetState, Meta) (string, bool) { return "", false }),
		}}

		got, err := NewResolver(config, nil).Resolve(decl, noState)
		require.NoError(t, err)
		assert.Equal(t, "GET", got.Method)
	})

	t.Run("lower layers are not evaluated once a value is found", func(t *testing.T) {
		lowerCalls := 0
		cfg := config
		cfg.Defaults = Options{Method: Computed(func(GetState, Meta) string {
			lowerCalls++
			return "PUT"
		})}
		decl := ActionDeclaration{ID: "update", Options: Options{Method: Literal("POST")}}

		got, err := NewResolver(cfg, nil).ResolveOption(KeyMethod, decl, noState)
		require.NoError(t, err)
		assert.Equal(t, "POST", got)
		assert.Zero(t, lowerCalls)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := NewResolver(config, nil).ResolveOption("timeout", ActionDeclaration{ID: "get"}, noState)
		assert.Error(t, err)
	})
}

func TestResolver_StaticIsArray(t *testing.T) {
	r := NewResolver(ResourceConfig{Name: "user"}, nil)

	assert.True(t, r.StaticIsArray(ActionDeclaration{ID: "fetch"}))
	assert.False(t, r.StaticIsArray(ActionDeclaration{ID: "get"}))
	assert.False(t, r.StaticIsArray(ActionDeclaration{ID: "fetch", Options: Options{IsArray: Literal(false)}}))
	assert.True(t, r.StaticIsArray(ActionDeclaration{ID: "search", Options: Options{IsArray: Literal(true)}}))
	// computed values are skipped
	assert.True(t, r.StaticIsArray(ActionDeclaration{ID: "fetch", Options: Options{
		IsArray: Computed(func(GetState, Meta) bool { return false }),
	}}))
}

func TestHeaderStore(t *testing.T) {
	store := NewHeaderStore(map[string]string{"Accept": "application/json"})
	r := NewResolver(ResourceConfig{URL: "https://api.test"}, store)
	decl := ActionDeclaration{ID: "get"}

	store.Set("Authorization", "Bearer one")
	got, err := r.Resolve(decl, noState)
	require.NoError(t, err)
	assert.Equal(t, "Bearer one", got.Headers["Authorization"])

	store.Set("Authorization", "Bearer two")
	store.Delete("Accept")
	got, err = r.Resolve(decl, noState)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer two"}, got.Headers)

	v, ok := store.Get("Authorization")
	assert.True(t, ok)
	assert.Equal(t, "Bearer two", v)

	store.Replace(map[string]string{"X-A": "1"})
	assert.Equal(t, map[string]string{"X-A": "1"}, store.Snapshot())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Set("X-B", "2")
			_, _ = r.Resolve(decl, noState)
		}()
	}
	wg.Wait()
}

func TestValue(t *testing.T) {
	var unset Value[string]
	assert.False(t, unset.IsSet())
	_, ok := unset.Get(noState, Meta{})
	assert.False(t, ok)

	lit := Literal("x")
	v, ok := lit.Static()
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	comp := Computed(func(GetState, Meta) string { return "y" })
	assert.True(t, comp.IsComputed())
	_, ok = comp.Static()
	assert.False(t, ok)

	assert.False(t, NonEmpty("").IsSet())
	assert.False(t, Ptr[bool](nil).IsSet())
	b := true
	got, ok := Ptr(&b).Static()
	assert.True(t, ok)
	assert.True(t, got)
}

func TestResolver_HeaderKeysIgnoreCase(t *testing.T) {
	headers := NewHeaderStore(map[string]string{
		"accept":       "application/json",
		"Content-Type": "application/json",
	})
	config := ResourceConfig{
		URL:      "https://api.test/users",
		Defaults: Options{Headers: Literal(map[string]string{"x-tenant": "acme"})},
	}
	decl := ActionDeclaration{ID: "get", Options: Options{
		Headers: Literal(map[string]string{"X-TENANT": "globex"}),
	}}
	override := Options{Headers: Literal(map[string]string{"accept": "text/plain"})}

	got, err := NewResolver(config, headers).Resolve(decl, noState, override)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Accept":       "text/plain",
		"Content-Type": "application/json",
		"X-Tenant":     "globex",
	}, got.Headers)

	headers.Set("content-type", "text/csv")
	v, ok := headers.Get("CONTENT-TYPE")
	assert.True(t, ok)
	assert.Equal(t, "text/csv", v)
	assert.Equal(t, map[string]string{"Accept": "application/json", "Content-Type": "text/csv"}, headers.Snapshot())

	headers.Delete("ACCEPT")
	_, ok = headers.Get("Accept")
	assert.False(t, ok)
}
