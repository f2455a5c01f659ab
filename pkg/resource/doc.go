// Package resource generates action creators and reducers for REST resources.
//
// A resource is described by a ResourceConfig and an ordered list of
// ActionDeclarations. CreateActions returns one ActionCreator per declaration;
// each call resolves its options, dispatches a pending LifecycleRecord, then
// performs the HTTP exchange on its own goroutine and dispatches a resolved or
// rejected record before settling the returned Deferred. CreateReducer folds
// those records into a normalized State.
package resource
