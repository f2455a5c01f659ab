package resource

import (
	"maps"
	"slices"
	"time"
)

// Status is the lifecycle stage carried by a LifecycleRecord.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
	StatusRejected Status = "rejected"
)

// Context is the per-call payload: URL parameters and request body fields.
type Context map[string]any

// Clone returns a copy of c. Nested maps and slices of the JSON shapes
// (map[string]any, []any, Context) are copied too; other values are shared.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case Context:
		return v.Clone()
	case map[string]any:
		return map[string]any(Context(v).Clone())
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]string:
		return maps.Clone(v)
	case []string:
		return slices.Clone(v)
	default:
		return v
	}
}

// ReducerOptions are the resolved options a reducer needs to fold a record.
type ReducerOptions struct {
	IsArray        bool `json:"isArray,omitempty"`
	AssignResponse bool `json:"assignResponse,omitempty"`
}

// LifecycleRecord is the action dispatched to the host store. Every call emits
// exactly two: a pending record, then a resolved or rejected one sharing its
// Type and Context.
type LifecycleRecord struct {
	Status     Status          `json:"status"`
	Type       string          `json:"type"`
	Context    Context         `json:"context"`
	Options    *ReducerOptions `json:"options,omitempty"`
	Body       any             `json:"body,omitempty"`
	Code       int             `json:"code,omitempty"`
	Err        *TransportError `json:"err,omitempty"`
	ReceivedAt *time.Time      `json:"receivedAt,omitempty"`
}

// Result is the value a successful call settles with.
type Result struct {
	Body       any
	Code       int
	Options    *ReducerOptions
	ReceivedAt time.Time
}
