package store_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/konnektr-io/rest-resource/pkg/resource"
	"github.com/konnektr-io/rest-resource/pkg/store"
)

type increment struct{ by int }

func counter(state any, action any) any {
	n, _ := state.(int)
	if inc, ok := action.(increment); ok {
		return n + inc.by
	}
	return n
}

type thunkFunc func(dispatch func(any) any, getState func() any) any

func (f thunkFunc) Run(dispatch func(any) any, getState func() any) any {
	return f(dispatch, getState)
}

var _ = Describe("Store", func() {
	It("reduces the init action over the initial state", func() {
		var seen []any
		s := store.New(func(state any, action any) any {
			seen = append(seen, action)
			return state
		}, 41)

		Expect(s.GetState()).To(Equal(41))
		Expect(seen).To(Equal([]any{store.ActionInit}))
	})

	It("applies actions in dispatch order and notifies listeners", func() {
		s := store.New(counter, nil)

		var states []any
		unsubscribe := s.Subscribe(func(state any, _ any) {
			states = append(states, state)
		})

		Expect(s.Dispatch(increment{by: 2})).To(Equal(increment{by: 2}))
		s.Dispatch(increment{by: 3})
		unsubscribe()
		s.Dispatch(increment{by: 5})

		Expect(s.GetState()).To(Equal(10))
		Expect(states).To(Equal([]any{2, 5}))
	})

	It("ignores nil actions", func() {
		s := store.New(counter, 1)
		Expect(s.Dispatch(nil)).To(BeNil())
		Expect(s.GetState()).To(Equal(1))
	})

	It("runs thunks with its accessors and returns their result", func() {
		s := store.New(counter, 0)

		result := s.Dispatch(thunkFunc(func(dispatch func(any) any, getState func() any) any {
			dispatch(increment{by: 1})
			dispatch(increment{by: 1})
			return getState()
		}))

		Expect(result).To(Equal(2))
	})

	It("lets listeners dispatch", func() {
		s := store.New(counter, 0)
		s.Subscribe(func(state any, _ any) {
			if state.(int) < 3 {
				s.Dispatch(increment{by: 1})
			}
		})

		s.Dispatch(increment{by: 1})
		Expect(s.GetState()).To(Equal(3))
	})

	It("serializes concurrent dispatches", func() {
		s := store.New(counter, 0)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Dispatch(increment{by: 1})
			}()
		}
		wg.Wait()

		Expect(s.GetState()).To(Equal(50))
	})
})

var _ = Describe("CombineReducers", func() {
	It("keeps one slice per reducer", func() {
		reducer := store.CombineReducers(map[string]store.Reducer{
			"a": counter,
			"b": func(state any, action any) any {
				n, _ := state.(int)
				if _, ok := action.(increment); ok {
					return n - 1
				}
				return n
			},
		})
		s := store.New(reducer, nil)
		s.Dispatch(increment{by: 4})

		a, ok := store.Select(s.GetState(), "a")
		Expect(ok).To(BeTrue())
		Expect(a).To(Equal(4))
		b, _ := store.Select(s.GetState(), "b")
		Expect(b).To(Equal(-1))

		_, ok = store.Select(s.GetState(), "c")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Store with a resource", func() {
	var (
		server *httptest.Server
		res    *resource.Resource
		s      *store.Store
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch r.Method {
			case http.MethodGet:
				_, _ = w.Write([]byte(`[{"id": 1, "name": "ann"}, {"id": 2, "name": "bob"}]`))
			case http.MethodDelete:
				w.WriteHeader(http.StatusNoContent)
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
		}))

		res = resource.NewResource(
			resource.ResourceConfig{Name: "user", URL: server.URL + "/users/:id"},
			[]resource.ActionDeclaration{{ID: "fetch"}, {ID: "delete"}, {ID: "create"}},
		)
		s = store.New(store.CombineReducers(map[string]store.Reducer{
			"users": res.Reducer.Reduce,
		}), nil)
	})

	AfterEach(func() {
		server.Close()
	})

	users := func() resource.State {
		state, _ := store.Select(s.GetState(), "users")
		return state.(resource.State)
	}

	It("folds the lifecycle of a fetch into the collection", func() {
		var (
			mu       sync.Mutex
			statuses []resource.Status
		)
		s.Subscribe(func(_ any, action any) {
			if record, ok := action.(resource.LifecycleRecord); ok {
				mu.Lock()
				statuses = append(statuses, record.Status)
				mu.Unlock()
			}
		})

		deferred := s.Dispatch(res.Actions["fetchUsers"](context.Background(), nil)).(*resource.Deferred)
		Expect(users().IsPending(res.Types["fetch"])).To(BeTrue())

		result, err := deferred.Wait(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Code).To(Equal(http.StatusOK))

		Expect(users().Items).To(HaveLen(2))
		Expect(users().IsPending(res.Types["fetch"])).To(BeFalse())
		mu.Lock()
		defer mu.Unlock()
		Expect(statuses).To(Equal([]resource.Status{resource.StatusPending, resource.StatusResolved}))
	})

	It("removes deleted records", func() {
		_, err := resource.Dispatch(s, res.Actions["fetchUsers"](context.Background(), nil)).Await()
		Expect(err).NotTo(HaveOccurred())

		_, err = resource.Dispatch(s, res.Actions["deleteUser"](context.Background(), resource.Context{"id": 1})).Await()
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() []any { return users().Items }, time.Second).Should(HaveLen(1))
	})

	It("records rejected calls", func() {
		_, err := resource.Dispatch(s, res.Actions["createUser"](context.Background(), resource.Context{"name": "cat"})).Await()
		Expect(err).To(MatchError(resource.ErrHTTPStatus))

		detail := users().Errors[res.Types["create"]]
		Expect(detail).NotTo(BeNil())
		Expect(detail.Code).To(Equal(http.StatusMethodNotAllowed))
	})
})
