package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-logr/logr"

	"github.com/konnektr-io/rest-resource/pkg/rest"
)

// DispatchFunc hands an action to the host store.
type DispatchFunc func(action any) any

// Dispatcher is the host store capability action creators rely on.
type Dispatcher interface {
	Dispatch(action any) any
	GetState() any
}

// Thunk is the deferred work returned by an ActionCreator. The host store runs
// it with its dispatch and state accessors.
type Thunk func(dispatch DispatchFunc, getState GetState) *Deferred

// Run implements the store's thunk contract.
func (t Thunk) Run(dispatch func(action any) any, getState func() any) any {
	return t(dispatch, getState)
}

// ActionCreator issues one call of a declared action. Overrides take precedence
// over the declaration, later overrides winning.
type ActionCreator func(ctx context.Context, c Context, overrides ...Options) Thunk

// Dispatch runs thunk through d and returns its Deferred. Dispatchers that do
// not execute thunks get it invoked directly with their accessors.
func Dispatch(d Dispatcher, thunk Thunk) *Deferred {
	if deferred, ok := d.Dispatch(thunk).(*Deferred); ok {
		return deferred
	}
	return thunk(d.Dispatch, d.GetState)
}

// CreateActions generates one action creator per declaration, keyed by the
// derived action name. Declarations whose names collide are resolved in favor
// of the last one.
func CreateActions(decls []ActionDeclaration, config ResourceConfig, opts ...Option) map[string]ActionCreator {
	s := newSettings(opts)
	f := &actionFactory{
		config:    config,
		settings:  s,
		resolver:  NewResolver(config, s.headers),
		templates: rest.NewTemplateProcessor(),
	}

	actions := make(map[string]ActionCreator, len(decls))
	for _, decl := range decls {
		name := ActionName(decl.ID, config.Name, config.pluralName(), f.resolver.StaticIsArray(decl))
		actions[name] = f.creator(decl)
	}
	return actions
}

type actionFactory struct {
	config    ResourceConfig
	settings  *settings
	resolver  *Resolver
	templates *rest.TemplateProcessor
}

func (f *actionFactory) creator(decl ActionDeclaration) ActionCreator {
	actionType := ActionType(decl.ID, f.config.Name)
	return func(ctx context.Context, c Context, overrides ...Options) Thunk {
		callContext := c.Clone()
		return func(dispatch DispatchFunc, getState GetState) *Deferred {
			return f.run(ctx, decl, actionType, callContext, overrides, dispatch, getState)
		}
	}
}

// call carries the state of a single invocation.
type call struct {
	decl       ActionDeclaration
	actionType string
	context    Context
	options    ResolvedOptions
	dispatch   DispatchFunc
	deferred   *Deferred
	log        logr.Logger
}

func (f *actionFactory) run(ctx context.Context, decl ActionDeclaration, actionType string, callContext Context, overrides []Options, dispatch DispatchFunc, getState GetState) *Deferred {
	c := &call{
		decl:       decl,
		actionType: actionType,
		context:    callContext,
		dispatch:   dispatch,
		deferred:   newDeferred(),
		log:        f.settings.log.WithValues("type", actionType),
	}

	config, buildErr := f.prepare(c, getState, overrides)

	c.log.V(1).Info("Dispatching record", "status", StatusPending)
	dispatch(LifecycleRecord{
		Status:  StatusPending,
		Type:    actionType,
		Context: callContext,
	})
	f.settings.metrics.recordStarted(f.config.Name, decl.ID)

	go f.perform(ctx, c, config, buildErr)

	return c.deferred
}

// prepare resolves the options of a call and builds its HTTP request.
func (f *actionFactory) prepare(c *call, getState GetState, overrides []Options) (rest.HTTPConfig, error) {
	options, err := f.resolver.Resolve(c.decl, getState, overrides...)
	if err != nil {
		return rest.HTTPConfig{}, fmt.Errorf("failed to resolve options: %w", err)
	}
	c.options = options

	reqURL, err := f.templates.BuildURL(options.URL, c.context, options.Query)
	if err != nil {
		return rest.HTTPConfig{}, fmt.Errorf("failed to build URL: %w", err)
	}

	config := rest.HTTPConfig{
		URL:         reqURL,
		Method:      strings.ToUpper(options.Method),
		Headers:     options.Headers,
		Credentials: options.Credentials,
	}
	if f.config.Auth != nil {
		config.AuthType = f.config.Auth.AuthType
		config.AuthConfig = f.config.Auth.AuthConfig
	}
	if hasBody(config.Method) {
		body, err := json.Marshal(c.context)
		if err != nil {
			return rest.HTTPConfig{}, fmt.Errorf("failed to encode request body: %w", err)
		}
		config.Body = body
	}
	return config, nil
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func (f *actionFactory) perform(ctx context.Context, c *call, config rest.HTTPConfig, buildErr error) {
	start := f.settings.now()
	if buildErr != nil {
		f.fail(c, newTransportError(&rest.RequestError{Err: buildErr}, ErrorTypeRequest))
		return
	}

	resp, err := f.settings.transport.Do(ctx, config)
	if err != nil {
		f.fail(c, newTransportError(err, ""))
		return
	}
	f.settings.metrics.observeResponse(f.config.Name, c.decl.ID, resp.StatusCode, f.settings.now().Sub(start))

	if resp.StatusCode >= http.StatusBadRequest {
		body, err := rest.DecodeBody(resp, "")
		if err != nil {
			body = string(resp.Body)
		}
		f.reject(c, resp.StatusCode, body)
		return
	}

	body, err := rest.DecodeBody(resp, c.decl.ResponsePath)
	if err == nil && c.decl.Transform != nil {
		body, err = c.decl.Transform(body)
	}
	if err != nil {
		f.fail(c, newTransportError(err, ErrorTypeDecode))
		return
	}

	f.resolve(c, resp.StatusCode, body)
}

func (f *actionFactory) resolve(c *call, code int, body any) {
	receivedAt := f.settings.now()
	options := c.options.ReducerOptions()

	c.log.V(1).Info("Dispatching record", "status", StatusResolved, "code", code)
	c.dispatch(LifecycleRecord{
		Status:     StatusResolved,
		Type:       c.actionType,
		Context:    c.context,
		Options:    options,
		Body:       body,
		Code:       code,
		ReceivedAt: &receivedAt,
	})
	f.settings.metrics.recordFinished(f.config.Name, c.decl.ID, StatusResolved)

	c.deferred.settle(&Result{Body: body, Code: code, Options: options, ReceivedAt: receivedAt}, nil)
}

// reject settles a call whose response carried an error status.
func (f *actionFactory) reject(c *call, code int, body any) {
	receivedAt := f.settings.now()

	c.log.V(1).Info("Dispatching record", "status", StatusRejected, "code", code)
	c.dispatch(LifecycleRecord{
		Status:     StatusRejected,
		Type:       c.actionType,
		Context:    c.context,
		Options:    c.options.ReducerOptions(),
		Body:       body,
		Code:       code,
		ReceivedAt: &receivedAt,
	})
	f.settings.metrics.recordFinished(f.config.Name, c.decl.ID, StatusRejected)

	c.deferred.settle(nil, &HTTPError{StatusCode: code, Body: body})
}

// fail settles a call that produced no usable response.
func (f *actionFactory) fail(c *call, terr *TransportError) {
	receivedAt := f.settings.now()

	c.log.V(1).Info("Dispatching record", "status", StatusRejected, "error", terr.Message, "errorType", terr.Type)
	c.dispatch(LifecycleRecord{
		Status:     StatusRejected,
		Type:       c.actionType,
		Context:    c.context,
		Options:    c.options.ReducerOptions(),
		Err:        terr,
		ReceivedAt: &receivedAt,
	})
	f.settings.metrics.recordFinished(f.config.Name, c.decl.ID, StatusRejected)

	c.deferred.settle(nil, terr)
}
