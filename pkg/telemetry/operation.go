// Package telemetry records a publish as an OpenTelemetry span tree: one root
// span per operation carrying the planned steps, one child span per step.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	PlanEventName      = "edgepub.plan"
	PlanVersion        = "1"
	PlanVersionKey     = "edgepub.plan.version"
	PlanJSONKey        = "edgepub.plan.json"
	defaultOperationID = "operation"
)

// PlannedStep is one announced step. Child steps use ParentID, or an ID of
// the form "parent/child".
type PlannedStep struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Title    string `json:"title"`
}

type Plan struct {
	Steps []PlannedStep `json:"steps"`
}

// Has reports whether the plan announces a step with id.
func (p Plan) Has(id string) bool {
	for _, step := range p.Steps {
		if step.ID == id {
			return true
		}
	}
	return false
}

type Operation struct {
	ctx    context.Context
	tracer trace.Tracer
	span   trace.Span
}

// Start opens the root span for operation and attaches plan to it.
func Start(ctx context.Context, tracer trace.Tracer, operation string, plan Plan) (*Operation, error) {
	if tracer == nil {
		return nil, fmt.Errorf("start telemetry operation: tracer is required")
	}
	if err := validatePlan(plan); err != nil {
		return nil, fmt.Errorf("start telemetry operation: %w", err)
	}

	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = defaultOperationID
	}

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("start telemetry operation: marshal plan: %w", err)
	}
	attrs := []attribute.KeyValue{
		attribute.String(PlanVersionKey, PlanVersion),
		attribute.String(PlanJSONKey, string(planJSON)),
	}

	spanCtx, span := tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
	span.AddEvent(PlanEventName, trace.WithAttributes(attrs...))
	return &Operation{ctx: spanCtx, tracer: tracer, span: span}, nil
}

func (o *Operation) Context() context.Context {
	if o == nil {
		return context.Background()
	}
	return o.ctx
}

// Step runs fn inside a child span named id. A nil Operation runs fn
// untraced.
func (o *Operation) Step(ctx context.Context, id string, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	stepID := strings.TrimSpace(id)
	if stepID == "" {
		return fmt.Errorf("run telemetry step: step id is required")
	}
	if ctx == nil {
		ctx = o.Context()
	}
	if o == nil || o.tracer == nil {
		return fn(ctx)
	}

	stepCtx, span := o.tracer.Start(ctx, stepID)
	defer span.End()

	if err := fn(stepCtx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
		return err
	}
	return nil
}

// Annotate adds attributes to the span active in ctx.
func Annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

// End closes the root span, marking it failed when err is non-nil.
func (o *Operation) End(err error) {
	if o == nil || o.span == nil {
		return
	}
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	o.span.End()
}

func validatePlan(plan Plan) error {
	ids := make(map[string]struct{}, len(plan.Steps))
	for i, step := range plan.Steps {
		stepID := strings.TrimSpace(step.ID)
		if stepID == "" {
			return fmt.Errorf("step %d has empty id", i)
		}
		if _, exists := ids[stepID]; exists {
			return fmt.Errorf("duplicate step id %q", stepID)
		}
		ids[stepID] = struct{}{}
	}
	for i, step := range plan.Steps {
		parentID := strings.TrimSpace(step.ParentID)
		if parentID == "" {
			continue
		}
		if _, exists := ids[parentID]; !exists {
			return fmt.Errorf("step %d parent %q not found in plan", i, parentID)
		}
	}
	return nil
}
