package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	resourcev1alpha1 "github.com/konnektr-io/rest-resource/api/v1alpha1"
	"github.com/konnektr-io/rest-resource/internal/util"
	"github.com/konnektr-io/rest-resource/pkg/resource"
	"github.com/konnektr-io/rest-resource/pkg/rest"
	"github.com/konnektr-io/rest-resource/pkg/store"
)

const (
	ControllerName         = "resource-sync-controller"
	ConditionReconciled    = "Reconciled"
	ConditionHTTPConnected = "HTTPConnected"
)

// Target binds a manifest to the resource generated from it.
type Target struct {
	Manifest *resourcev1alpha1.RESTResource
	Resource *resource.Resource
}

// Key is the store slice holding the target's state.
func (t *Target) Key() string {
	return t.Resource.Config.Name
}

// NewTarget resolves the manifest's authentication and generates its resource.
func NewTarget(manifest *resourcev1alpha1.RESTResource, auth *rest.AuthResolver, opts ...resource.Option) (*Target, error) {
	authConfig, err := auth.ResolveAuthenticationConfig(manifest.Spec.AuthenticationRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve authentication for %s: %w", manifest.Name, err)
	}
	config, decls := resource.FromManifest(manifest, authConfig)
	return &Target{
		Manifest: manifest,
		Resource: resource.NewResource(config, decls, opts...),
	}, nil
}

// NewStore creates a store holding one slice per target.
func NewStore(targets []*Target, log logr.Logger) *store.Store {
	reducers := make(map[string]store.Reducer, len(targets))
	for _, t := range targets {
		reducers[t.Key()] = t.Resource.Reducer.Reduce
	}
	return store.New(store.CombineReducers(reducers), nil, store.WithLogger(log))
}

// ResourceSyncReconciler invokes the sync actions of RESTResource manifests
// and records the outcome in their status.
type ResourceSyncReconciler struct {
	Store *store.Store
	Log   logr.Logger
	// Selector restricts the sync actions invoked. Empty selects all.
	Selector []util.ActionRef
	// RequestTimeout bounds each sync action. Zero means no bound.
	RequestTimeout      time.Duration
	DefaultPollInterval time.Duration
}

// Reconcile runs one poll of target.
func (r *ResourceSyncReconciler) Reconcile(ctx context.Context, target *Target) (reconcile.Result, error) {
	manifest := target.Manifest
	log := log.FromContext(ctx).WithValues("resource", target.Key())
	log.Info("Reconciling RESTResource")

	if manifest.Status.Conditions == nil {
		manifest.Status.Conditions = []metav1.Condition{}
	}
	defer func() {
		manifest.Status.ObservedGeneration = manifest.Generation
	}()

	pollInterval, err := manifest.Spec.GetPollInterval()
	if err != nil {
		log.Error(err, "Invalid pollInterval format")
		setCondition(manifest, ConditionReconciled, metav1.ConditionFalse, "InvalidSpec", err.Error())
		return reconcile.Result{}, nil
	}
	if pollInterval == 0 {
		pollInterval = r.DefaultPollInterval
	}

	var failures []error
	for _, spec := range manifest.Spec.Sync {
		if !util.MatchAny(r.Selector, target.Key(), spec.Action) {
			continue
		}
		if err := r.syncAction(ctx, target, spec); err != nil {
			if ctx.Err() != nil {
				return reconcile.Result{}, ctx.Err()
			}
			log.Error(err, "Sync action failed", "action", spec.Action)
			failures = append(failures, fmt.Errorf("%s: %w", spec.Action, err))
		}
	}

	if state, ok := r.state(target); ok {
		manifest.Status.Items = len(state.Items)
	}

	if err := utilerrors.NewAggregate(failures); err != nil {
		setCondition(manifest, ConditionHTTPConnected, connectedStatus(failures), "RequestFailed", truncateError(err.Error(), 1024))
		setCondition(manifest, ConditionReconciled, metav1.ConditionFalse, "SyncFailed", truncateError(err.Error(), 1024))
		return reconcile.Result{RequeueAfter: pollInterval}, nil
	}

	now := metav1.Now()
	manifest.Status.LastPollTime = &now
	setCondition(manifest, ConditionHTTPConnected, metav1.ConditionTrue, "Connected", "Successfully reached the REST API")
	setCondition(manifest, ConditionReconciled, metav1.ConditionTrue, "Success", "Successfully ran sync actions")
	log.Info("RESTResource reconciled successfully", "PollInterval", pollInterval, "items", manifest.Status.Items)

	return reconcile.Result{RequeueAfter: pollInterval}, nil
}

func (r *ResourceSyncReconciler) syncAction(ctx context.Context, target *Target, spec resourcev1alpha1.SyncSpec) error {
	creator, ok := target.Resource.Action(spec.Action)
	if !ok {
		return fmt.Errorf("action %q is not declared", spec.Action)
	}

	callCtx := ctx
	if r.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.RequestTimeout)
		defer cancel()
	}

	c := make(resource.Context, len(spec.Context))
	for k, v := range spec.Context {
		c[k] = v
	}
	_, err := resource.Dispatch(r.Store, creator(callCtx, c)).Wait(ctx)
	return err
}

func (r *ResourceSyncReconciler) state(target *Target) (resource.State, bool) {
	v, ok := store.Select(r.Store.GetState(), target.Key())
	if !ok {
		return resource.State{}, false
	}
	state, ok := v.(resource.State)
	return state, ok
}

// connectedStatus is true when every failure carried an HTTP response.
func connectedStatus(failures []error) metav1.ConditionStatus {
	for _, err := range failures {
		if !errors.Is(err, resource.ErrHTTPStatus) {
			return metav1.ConditionFalse
		}
	}
	return metav1.ConditionTrue
}

// Run polls every target until ctx is done.
func (r *ResourceSyncReconciler) Run(ctx context.Context, targets []*Target) {
	var wg sync.WaitGroup
	for _, target := range targets {
		interval, err := target.Manifest.Spec.GetPollInterval()
		if err != nil || interval == 0 {
			interval = r.DefaultPollInterval
		}
		if interval <= 0 {
			r.Log.Info("No poll interval, skipping", "resource", target.Key())
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := log.IntoContext(ctx, r.Log.WithName(ControllerName))
			wait.UntilWithContext(ctx, func(ctx context.Context) {
				if _, err := r.Reconcile(ctx, target); err != nil {
					r.Log.Error(err, "Reconcile failed", "resource", target.Key())
				}
			}, interval)
		}()
	}
	wg.Wait()
}

// RunOnce reconciles every target once and reports those that are not ready.
func (r *ResourceSyncReconciler) RunOnce(ctx context.Context, targets []*Target) error {
	ctx = log.IntoContext(ctx, r.Log.WithName(ControllerName))
	var errs []error
	for _, target := range targets {
		if _, err := r.Reconcile(ctx, target); err != nil {
			return err
		}
		cond := meta.FindStatusCondition(target.Manifest.Status.Conditions, ConditionReconciled)
		if cond != nil && cond.Status != metav1.ConditionTrue {
			errs = append(errs, fmt.Errorf("%s: %s", target.Key(), cond.Message))
		}
	}
	return utilerrors.NewAggregate(errs)
}

// setCondition updates the status condition of the manifest.
func setCondition(res *resourcev1alpha1.RESTResource, typeString string, status metav1.ConditionStatus, reason, message string) {
	condition := metav1.Condition{
		Type:               typeString,
		Status:             status,
		ObservedGeneration: res.Generation,
		LastTransitionTime: metav1.Now(),
		Reason:             reason,
		Message:            message,
	}
	meta.SetStatusCondition(&res.Status.Conditions, condition)
}

// truncateError ensures error messages fit within status field limits.
func truncateError(msg string, maxLen int) string {
	if len(msg) > maxLen {
		return msg[:maxLen-3] + "..."
	}
	return msg
}
