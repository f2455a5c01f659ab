package resource

import (
	"maps"
	"slices"
	"time"

	"github.com/spf13/cast"
)

// Entity is a single normalized record.
type Entity = map[string]any

// ErrorDetail is the bookkeeping kept for the last rejected record of a type.
type ErrorDetail struct {
	Code int             `json:"code,omitempty"`
	Body any             `json:"body,omitempty"`
	Err  *TransportError `json:"err,omitempty"`
}

// State is the slice of store state maintained by a resource reducer.
type State struct {
	// Items is the ordered collection filled by isArray actions.
	Items []any `json:"items"`
	// ByID maps identifiers to records of single-entity actions.
	ByID map[string]Entity `json:"byId"`
	// Item is the record of the last single-entity get.
	Item Entity `json:"item,omitempty"`
	// Pending and Errors are keyed by event type.
	Pending     map[string]bool         `json:"pending"`
	Errors      map[string]*ErrorDetail `json:"errors"`
	LastUpdated *time.Time              `json:"lastUpdated,omitempty"`
}

// InitialState returns an empty State.
func InitialState() State {
	return State{
		Items:   []any{},
		ByID:    map[string]Entity{},
		Pending: map[string]bool{},
		Errors:  map[string]*ErrorDetail{},
	}
}

// IsPending reports whether the last record of eventType was pending.
func (s State) IsPending(eventType string) bool {
	return s.Pending[eventType]
}

// Reducer folds lifecycle records into a State. It never mutates its input.
type Reducer func(state State, action any) State

// Reduce adapts r to untyped host stores. A state that is not a State, such as
// nil on store initialization, is replaced by InitialState.
func (r Reducer) Reduce(state any, action any) any {
	s, ok := state.(State)
	if !ok {
		s = InitialState()
	}
	return r(s, action)
}

type reducerEntry struct {
	decl           ActionDeclaration
	isArray        bool
	assignResponse bool
}

// CreateReducer generates the reducer of a declaration set. Records whose type
// belongs to no declaration pass through unchanged.
func CreateReducer(decls []ActionDeclaration, config ResourceConfig) Reducer {
	resolver := NewResolver(config, nil)
	entries := make(map[string]reducerEntry, len(decls))
	for _, decl := range decls {
		assign, _ := decl.AssignResponse.Static()
		entries[ActionType(decl.ID, config.Name)] = reducerEntry{
			decl:           decl,
			isArray:        resolver.StaticIsArray(decl),
			assignResponse: assign,
		}
	}
	f := &fold{idKey: config.idKey()}

	return func(state State, action any) State {
		record, ok := asRecord(action)
		if !ok {
			return state
		}
		entry, ok := entries[record.Type]
		if !ok {
			return state
		}

		switch record.Status {
		case StatusPending:
			next := withBookkeeping(state)
			next.Pending[record.Type] = true
			return next
		case StatusRejected:
			next := withBookkeeping(state)
			next.Pending[record.Type] = false
			next.Errors[record.Type] = &ErrorDetail{Code: record.Code, Body: record.Body, Err: record.Err}
			return next
		case StatusResolved:
			next := withBookkeeping(state)
			next.Pending[record.Type] = false
			delete(next.Errors, record.Type)
			if record.ReceivedAt != nil {
				t := *record.ReceivedAt
				next.LastUpdated = &t
			}
			return f.resolved(next, entry, record)
		default:
			return state
		}
	}
}

func asRecord(action any) (LifecycleRecord, bool) {
	switch r := action.(type) {
	case LifecycleRecord:
		return r, true
	case *LifecycleRecord:
		if r == nil {
			return LifecycleRecord{}, false
		}
		return *r, true
	}
	return LifecycleRecord{}, false
}

// withBookkeeping returns a shallow copy of state with private bookkeeping maps.
func withBookkeeping(state State) State {
	next := state
	next.Pending = maps.Clone(state.Pending)
	if next.Pending == nil {
		next.Pending = map[string]bool{}
	}
	next.Errors = maps.Clone(state.Errors)
	if next.Errors == nil {
		next.Errors = map[string]*ErrorDetail{}
	}
	if next.ByID == nil {
		next.ByID = map[string]Entity{}
	}
	if next.Items == nil {
		next.Items = []any{}
	}
	return next
}

type fold struct {
	idKey string
}

func (f *fold) resolved(state State, entry reducerEntry, record LifecycleRecord) State {
	isArray, assign := entry.isArray, entry.assignResponse
	if record.Options != nil {
		isArray, assign = record.Options.IsArray, record.Options.AssignResponse
	}

	kind := entry.decl.kind()
	if kind == "" {
		kind = KindGet
		if isArray {
			kind = KindFetch
		}
	}

	switch kind {
	case KindFetch:
		if isArray {
			state.Items = toSlice(record.Body)
			return state
		}
		return f.upsert(state, record, assign, true)
	case KindCreate:
		if isArray {
			items := slices.Clone(state.Items)
			for _, item := range toSlice(record.Body) {
				items = f.mergeItem(items, item, assign)
			}
			state.Items = items
			return state
		}
		state = f.upsert(state, record, assign, false)
		if entity, ok := f.entityOf(state, record); ok {
			state.Items = f.mergeItem(slices.Clone(state.Items), entity, false)
		}
		return state
	case KindUpdate:
		state = f.upsert(state, record, assign, false)
		if entity, ok := f.entityOf(state, record); ok {
			state.Items = f.replaceItem(state.Items, entity)
			if state.Item != nil && f.idOf(state.Item) == f.idOf(entity) {
				state.Item = entity
			}
		}
		return state
	case KindDelete:
		id := f.identify(record.Context, asEntity(record.Body))
		if id == "" {
			return state
		}
		if _, ok := state.ByID[id]; ok {
			state.ByID = maps.Clone(state.ByID)
			delete(state.ByID, id)
		}
		state.Items = slices.DeleteFunc(slices.Clone(state.Items), func(item any) bool {
			e, ok := item.(Entity)
			return ok && f.idOf(e) == id
		})
		if state.Item != nil && f.idOf(state.Item) == id {
			state.Item = nil
		}
		return state
	default:
		return f.upsert(state, record, assign, true)
	}
}

// upsert stores the record of a single-entity response at its identifier.
// With assign the body is merged into the existing record; otherwise it
// replaces it. Bodies that are not objects merge the call context instead.
func (f *fold) upsert(state State, record LifecycleRecord, assign bool, setItem bool) State {
	body, isObject := record.Body.(Entity)
	id := f.identify(record.Context, body)

	existing := f.lookup(state, id)
	var entity Entity
	switch {
	case isObject && assign:
		base := existing
		if base == nil {
			base = Entity(record.Context)
		}
		entity = merge(base, body)
	case isObject:
		entity = maps.Clone(body)
	default:
		entity = merge(existing, Entity(record.Context))
	}

	if id != "" {
		if _, ok := entity[f.idKey]; !ok {
			entity[f.idKey] = record.Context[f.idKey]
		}
		state.ByID = maps.Clone(state.ByID)
		state.ByID[id] = entity
	}
	if setItem {
		state.Item = entity
	}
	return state
}

// entityOf returns the record upsert stored for the call.
func (f *fold) entityOf(state State, record LifecycleRecord) (Entity, bool) {
	id := f.identify(record.Context, asEntity(record.Body))
	if id == "" {
		if body, ok := record.Body.(Entity); ok {
			return body, true
		}
		return nil, false
	}
	entity, ok := state.ByID[id]
	return entity, ok
}

func (f *fold) lookup(state State, id string) Entity {
	if id == "" {
		return nil
	}
	if e, ok := state.ByID[id]; ok {
		return e
	}
	for _, item := range state.Items {
		if e, ok := item.(Entity); ok && f.idOf(e) == id {
			return e
		}
	}
	return nil
}

// mergeItem appends item to items, or merges it into the element sharing its
// identifier. items must be owned by the caller.
func (f *fold) mergeItem(items []any, item any, assign bool) []any {
	entity, ok := item.(Entity)
	if !ok {
		return append(items, item)
	}
	id := f.idOf(entity)
	if id == "" {
		return append(items, entity)
	}
	for i, existing := range items {
		e, ok := existing.(Entity)
		if !ok || f.idOf(e) != id {
			continue
		}
		if assign {
			items[i] = merge(e, entity)
		} else {
			items[i] = entity
		}
		return items
	}
	return append(items, entity)
}

// replaceItem swaps the element sharing entity's identifier, if any.
func (f *fold) replaceItem(items []any, entity Entity) []any {
	id := f.idOf(entity)
	if id == "" {
		return items
	}
	for i, existing := range items {
		if e, ok := existing.(Entity); ok && f.idOf(e) == id {
			out := slices.Clone(items)
			out[i] = entity
			return out
		}
	}
	return items
}

// identify returns the identifier of a call: the context's, else the body's.
func (f *fold) identify(context Context, body Entity) string {
	if id := stringID(context[f.idKey]); id != "" {
		return id
	}
	return f.idOf(body)
}

func (f *fold) idOf(e Entity) string {
	if e == nil {
		return ""
	}
	return stringID(e[f.idKey])
}

func stringID(v any) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

func asEntity(v any) Entity {
	e, _ := v.(Entity)
	return e
}

func toSlice(body any) []any {
	items, ok := body.([]any)
	if !ok {
		return []any{}
	}
	return slices.Clone(items)
}

// merge returns a new Entity holding base overlaid with patch.
func merge(base, patch Entity) Entity {
	out := make(Entity, len(base)+len(patch))
	maps.Copy(out, base)
	maps.Copy(out, patch)
	return out
}
