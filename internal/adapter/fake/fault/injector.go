// Package fault injects failures into fake control-plane operations.
package fault

import (
	"fmt"
	"strings"
	"sync"
)

// Hook inspects the call arguments and returns an error to fail the call.
type Hook func(args ...any) error

type pointFault struct {
	onceErrs  []error
	alwaysErr error
	hook      Hook
}

// Injector manages per-point fault injection for fake adapters.
// It supports one-shot failures, persistent failures, and argument-aware hooks.
type Injector struct {
	mu     sync.Mutex
	points map[string]*pointFault
}

func NewInjector() *Injector {
	return &Injector{points: make(map[string]*pointFault)}
}

// FailOnce injects err for the next evaluation of point. Calling it again
// queues another one-shot failure.
func (i *Injector) FailOnce(point string, err error) {
	if i == nil || strings.TrimSpace(point) == "" || err == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	pf := i.ensurePoint(point)
	pf.onceErrs = append(pf.onceErrs, err)
}

// FailAlways injects err on every evaluation of point.
func (i *Injector) FailAlways(point string, err error) {
	if i == nil || strings.TrimSpace(point) == "" || err == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ensurePoint(point).alwaysErr = err
}

// SetHook sets an argument-aware hook for point.
func (i *Injector) SetHook(point string, hook Hook) {
	if i == nil || strings.TrimSpace(point) == "" || hook == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ensurePoint(point).hook = hook
}

// Clear removes all faults for a single point.
func (i *Injector) Clear(point string) {
	if i == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.points, point)
}

// Reset removes all configured faults.
func (i *Injector) Reset() {
	if i == nil {
		return
	}
	i.mu.Lock()
	i.points = make(map[string]*pointFault)
	i.mu.Unlock()
}

// Eval reports the injected failure for this evaluation of point, if any.
// Precedence: hook -> once -> always. Injected errors are returned unwrapped
// so typed errors survive errors.As.
func (i *Injector) Eval(point string, args ...any) error {
	if i == nil || strings.TrimSpace(point) == "" {
		return nil
	}

	i.mu.Lock()
	pf := i.points[point]
	if pf == nil {
		i.mu.Unlock()
		return nil
	}
	hook := pf.hook
	var onceErr error
	if len(pf.onceErrs) > 0 {
		onceErr = pf.onceErrs[0]
		pf.onceErrs = pf.onceErrs[1:]
	}
	alwaysErr := pf.alwaysErr
	i.mu.Unlock()

	if hook != nil {
		if err := hook(args...); err != nil {
			return err
		}
	}
	if onceErr != nil {
		return onceErr
	}
	if alwaysErr != nil {
		return alwaysErr
	}
	return nil
}

// Points returns the configured point names.
func (i *Injector) Points() []string {
	if i == nil {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, 0, len(i.points))
	for p := range i.points {
		out = append(out, p)
	}
	return out
}

func (i *Injector) ensurePoint(point string) *pointFault {
	pf, ok := i.points[point]
	if !ok {
		pf = &pointFault{}
		i.points[point] = pf
	}
	return pf
}

// Errorf is a convenience for building injected errors in tests.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("injected: "+format, args...)
}
