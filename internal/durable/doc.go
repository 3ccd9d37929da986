// Package durable reconciles durable object namespaces with the control
// plane around a script upload.
//
// A script may both implement a namespace and bind to it. Binding needs the
// namespace id before upload, while a complete namespace needs the uploaded
// script. Reconcile breaks the cycle by creating id-only placeholders before
// upload; Finalize attaches script and class afterwards:
//
//	Unknown -> Placeholder -> Finalized
//
// A Registry is owned by exactly one Unit and is not safe for concurrent use.
package durable
