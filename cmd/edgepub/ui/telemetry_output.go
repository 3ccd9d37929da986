package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"edgepub/pkg/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryOutput renders publish operations from their spans. Each root
// span is shown as a parent line with its planned steps beneath it, so
// concurrent publishes do not mix.
type TelemetryOutput struct {
	provider *sdktrace.TracerProvider
	closeFn  func()
}

func NewTelemetryOutput() *TelemetryOutput {
	if IsInteractive() {
		checklist := NewChecklist(os.Stderr)
		return newTelemetryOutput(checklist.OnSnapshot, checklist.Close)
	}
	line := newLineTelemetry(os.Stderr)
	return newTelemetryOutput(line.OnSnapshot, func() {})
}

func newTelemetryOutput(reporter func(stepSnapshot), closeFn func()) *TelemetryOutput {
	observer := newStepObserver(reporter)
	processor := &stepSpanProcessor{observer: observer, operations: make(map[trace.SpanID]string)}
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(processor))
	return &TelemetryOutput{provider: provider, closeFn: closeFn}
}

func (o *TelemetryOutput) Tracer(name string) trace.Tracer {
	if o == nil || o.provider == nil {
		return otel.Tracer(name)
	}
	return o.provider.Tracer(name)
}

func (o *TelemetryOutput) Close() {
	if o == nil {
		return
	}
	if o.provider != nil {
		_ = o.provider.Shutdown(context.Background())
	}
	if o.closeFn != nil {
		o.closeFn()
	}
}

type lineTelemetry struct {
	out      io.Writer
	mu       sync.Mutex
	status   map[string]stepStatus
	messages map[string]string
}

func newLineTelemetry(out io.Writer) *lineTelemetry {
	return &lineTelemetry{
		out:      out,
		status:   make(map[string]stepStatus),
		messages: make(map[string]string),
	}
}

// OnSnapshot prints one line per step status change.
func (l *lineTelemetry) OnSnapshot(snapshot stepSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, step := range snapshot.Steps {
		if step.Status == stepPending {
			continue
		}
		msg := strings.TrimSpace(step.Message)
		prevStatus, seen := l.status[step.ID]
		if seen && prevStatus == step.Status && l.messages[step.ID] == msg {
			continue
		}
		l.status[step.ID] = step.Status
		l.messages[step.ID] = msg
		fmt.Fprintln(l.out, formatStepLine(step, msg))
	}
}

func formatStepLine(step stepState, msg string) string {
	prefix := "[..]"
	switch step.Status {
	case stepRunning:
		prefix = "[->]"
	case stepDone:
		prefix = "[ok]"
	case stepFailed:
		prefix = "[x]"
	}

	line := stepIndent(step) + prefix + " " + step.Title
	if msg != "" {
		line += " (" + msg + ")"
	}
	return line
}

type stepObserver struct {
	mu       sync.Mutex
	steps    map[string]stepState
	order    []string
	reporter func(stepSnapshot)
}

func newStepObserver(reporter func(stepSnapshot)) *stepObserver {
	return &stepObserver{
		steps:    make(map[string]stepState),
		reporter: reporter,
	}
}

func scopedID(operation, step string) string {
	return operation + "/" + step
}

// onOperation registers an operation as a parent step with its plan as
// children.
func (o *stepObserver) onOperation(operation string, plan telemetry.Plan) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.putLocked(stepState{ID: operation, Title: operation, Status: stepRunning})
	for _, planned := range plan.Steps {
		id := strings.TrimSpace(planned.ID)
		if id == "" {
			continue
		}
		title := strings.TrimSpace(planned.Title)
		if title == "" {
			title = id
		}
		o.putLocked(stepState{ID: scopedID(operation, id), ParentID: operation, Title: title, Status: stepPending})
	}
	o.emitLocked()
}

func (o *stepObserver) onStepStart(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	step := o.ensureLocked(id)
	step.Status = stepRunning
	step.Message = ""
	o.steps[id] = step
	o.emitLocked()
}

func (o *stepObserver) onStepEnd(id string, failed bool, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	step := o.ensureLocked(id)
	step.Status = stepDone
	step.Message = ""
	if failed {
		step.Status = stepFailed
		step.Message = strings.TrimSpace(message)
	}
	o.steps[id] = step
	o.emitLocked()
}

func (o *stepObserver) putLocked(step stepState) {
	if _, exists := o.steps[step.ID]; !exists {
		o.order = append(o.order, step.ID)
	}
	o.steps[step.ID] = step
}

// ensureLocked returns the step for id, adding an unplanned one if needed.
func (o *stepObserver) ensureLocked(id string) stepState {
	if step, ok := o.steps[id]; ok {
		return step
	}
	step := stepState{ID: id, Title: id, Status: stepPending}
	if idx := strings.LastIndex(id, "/"); idx > 0 {
		step.ParentID = id[:idx]
		step.Title = id[idx+1:]
	}
	o.putLocked(step)
	return step
}

func (o *stepObserver) emitLocked() {
	if o.reporter == nil {
		return
	}

	children := make(map[string][]stepState)
	for _, step := range o.steps {
		if step.ParentID != "" {
			children[step.ParentID] = append(children[step.ParentID], step)
		}
	}

	steps := make([]stepState, 0, len(o.order))
	for _, id := range o.order {
		step := o.steps[id]
		if summary := summarize(children[id]); summary != "" {
			switch {
			case step.Message == "":
				step.Message = summary
			case step.Status == stepFailed && !strings.Contains(step.Message, summary):
				step.Message = summary + "; " + step.Message
			}
		}
		steps = append(steps, step)
	}
	o.reporter(stepSnapshot{Steps: steps})
}

func summarize(children []stepState) string {
	if len(children) == 0 {
		return ""
	}
	done, failed := 0, 0
	for _, child := range children {
		switch child.Status {
		case stepDone:
			done++
		case stepFailed:
			failed++
		}
	}
	if failed > 0 {
		return fmt.Sprintf("%d/%d done, %d failed", done, len(children), failed)
	}
	return fmt.Sprintf("%d/%d done", done, len(children))
}

// stepSpanProcessor maps spans onto observer steps. Root spans are
// operations; their direct children are steps scoped by the operation name.
type stepSpanProcessor struct {
	observer *stepObserver

	mu         sync.Mutex
	operations map[trace.SpanID]string
}

func (p *stepSpanProcessor) OnStart(_ context.Context, span sdktrace.ReadWriteSpan) {
	if !span.Parent().IsValid() {
		var plan telemetry.Plan
		if raw := attributeValue(span.Attributes(), telemetry.PlanJSONKey); raw != "" {
			_ = json.Unmarshal([]byte(raw), &plan)
		}
		p.mu.Lock()
		p.operations[span.SpanContext().SpanID()] = span.Name()
		p.mu.Unlock()
		p.observer.onOperation(span.Name(), plan)
		return
	}
	if id, ok := p.stepID(span.Parent().SpanID(), span.Name()); ok {
		p.observer.onStepStart(id)
	}
}

func (p *stepSpanProcessor) OnEnd(span sdktrace.ReadOnlySpan) {
	status := span.Status()
	failed := status.Code == codes.Error

	if !span.Parent().IsValid() {
		p.mu.Lock()
		delete(p.operations, span.SpanContext().SpanID())
		p.mu.Unlock()
		p.observer.onStepEnd(span.Name(), failed, "")
		return
	}
	if id, ok := p.stepID(span.Parent().SpanID(), span.Name()); ok {
		p.observer.onStepEnd(id, failed, status.Description)
	}
}

func (p *stepSpanProcessor) stepID(parent trace.SpanID, name string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	operation, ok := p.operations[parent]
	if !ok {
		return "", false
	}
	return scopedID(operation, name), true
}

func (p *stepSpanProcessor) Shutdown(context.Context) error   { return nil }
func (p *stepSpanProcessor) ForceFlush(context.Context) error { return nil }

func attributeValue(attrs []attribute.KeyValue, key string) string {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsString()
		}
	}
	return ""
}
