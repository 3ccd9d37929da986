// Package publish runs the outer deployment loop for a script: namespace
// reconciliation around the upload, then the workers.dev, route and
// schedule targets.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"edgepub/internal/check"
	"edgepub/internal/controlplane"
	"edgepub/internal/durable"
	"edgepub/pkg/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	stepReconcile  = "reconcile"
	stepUpload     = "upload"
	stepFinalize   = "finalize"
	stepWorkersDev = "workers_dev"
	stepRoutes     = "routes"
	stepSchedules  = "schedules"

	defaultConcurrency = 4
)

type Options struct {
	Tracer trace.Tracer
	Logger *slog.Logger
	// Concurrency bounds PublishAll. Zero means a small default.
	Concurrency int
}

type Publisher struct {
	cp          ControlPlane
	tracer      trace.Tracer
	log         *slog.Logger
	concurrency int
}

func New(cp ControlPlane, opts Options) *Publisher {
	check.Assert(cp != nil, "publish.New: control plane must not be nil")
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("edgepub/publish")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Publisher{
		cp:          cp,
		tracer:      opts.Tracer,
		log:         opts.Logger,
		concurrency: opts.Concurrency,
	}
}

// Publish reconciles namespaces, uploads the script, finalizes the
// namespaces it implements and then applies the deploy targets. Any failure
// stops the publish; completed remote calls are not reverted.
func (p *Publisher) Publish(ctx context.Context, proj Project) (Results, error) {
	if err := validateProject(proj); err != nil {
		return Results{}, err
	}

	plan := publishPlan(proj)
	op, err := telemetry.Start(ctx, p.tracer, "publish "+proj.ScriptName, plan)
	if err != nil {
		return Results{}, err
	}
	var opErr error
	defer func() {
		op.End(opErr)
	}()

	log := p.log.With("script", proj.ScriptName, "account", proj.AccountID)
	unit := proj.unit()
	res := Results{ScriptName: proj.ScriptName}

	steps := []struct {
		id string
		fn func(context.Context) error
	}{
		{
			id: stepReconcile,
			fn: func(stepCtx context.Context) error {
				_, stepErr := unit.Reconcile(stepCtx, p.cp)
				for _, rec := range unit.Placeholders {
					res.Placeholders = append(res.Placeholders, rec.Name)
				}
				telemetry.Annotate(stepCtx, attribute.StringSlice("edgepub.placeholders", res.Placeholders))
				return stepErr
			},
		},
		{
			id: stepUpload,
			fn: func(stepCtx context.Context) error {
				upload := controlplane.ScriptUpload{
					Name:     proj.ScriptName,
					Body:     proj.Script,
					Bindings: scriptBindings(unit.Uses),
				}
				if stepErr := p.cp.UploadScript(stepCtx, proj.AccountID, upload); stepErr != nil {
					return fmt.Errorf("upload script %s: %w", proj.ScriptName, stepErr)
				}
				log.Debug("script uploaded", "bindings", len(upload.Bindings), "bytes", len(upload.Body))
				return nil
			},
		},
		{
			id: stepFinalize,
			fn: func(stepCtx context.Context) error {
				touched, stepErr := unit.Finalize(stepCtx, p.cp)
				res.Finalized = touched
				telemetry.Annotate(stepCtx, attribute.StringSlice("edgepub.finalized", touched))
				return stepErr
			},
		},
		{
			id: stepWorkersDev,
			fn: func(stepCtx context.Context) error {
				url, stepErr := p.publishWorkersDev(stepCtx, proj)
				if stepErr != nil {
					return stepErr
				}
				res.URLs = append(res.URLs, url)
				return nil
			},
		},
		{
			id: stepRoutes,
			fn: func(stepCtx context.Context) error {
				patterns, stepErr := p.publishRoutes(stepCtx, proj)
				res.URLs = append(res.URLs, patterns...)
				return stepErr
			},
		},
		{
			id: stepSchedules,
			fn: func(stepCtx context.Context) error {
				schedules, stepErr := p.cp.UpdateSchedules(stepCtx, proj.AccountID, proj.ScriptName, proj.Crons)
				if stepErr != nil {
					return fmt.Errorf("update schedules of %s: %w", proj.ScriptName, stepErr)
				}
				for _, s := range schedules {
					res.Schedules = append(res.Schedules, s.Cron)
				}
				return nil
			},
		},
	}

	for _, step := range steps {
		if !plan.Has(step.id) {
			continue
		}
		if err := op.Step(op.Context(), step.id, step.fn); err != nil {
			opErr = err
			return res, err
		}
	}

	for _, impl := range proj.Implements {
		if rec, ok := unit.Registry.Lookup(impl.NamespaceName); ok {
			res.DurableObjectNamespaces = append(res.DurableObjectNamespaces, rec)
		}
	}
	log.Info("script published",
		"placeholders", len(res.Placeholders),
		"finalized", len(res.Finalized),
		"urls", len(res.URLs))
	return res, nil
}

// PublishAll publishes projects concurrently. Each project gets its own
// namespace registry. Results are returned in input order; on failure the
// first error is returned and projects not yet started are skipped.
func (p *Publisher) PublishAll(ctx context.Context, projects []Project) ([]Results, error) {
	results := make([]Results, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, proj := range projects {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.Publish(gctx, proj)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Plan reports what Publish would do to durable object namespaces without
// issuing any mutating call. Bindings to namespaces that would be created as
// placeholders carry PendingID.
func (p *Publisher) Plan(ctx context.Context, proj Project) (Preview, error) {
	if err := validateProject(proj); err != nil {
		return Preview{}, err
	}
	unit := proj.unit()
	placeholders, plan, err := unit.Plan(ctx, p.cp)
	if err != nil {
		return Preview{}, fmt.Errorf("plan %s: %w", proj.ScriptName, err)
	}

	projected := durable.NewRegistry(unit.Registry.Records()...)
	for _, name := range placeholders {
		projected.Insert(durable.NamespaceRecord{Name: name, ID: PendingID})
	}
	bindings := slices.Clone(unit.Uses)
	if err := durable.ResolveBindings(bindings, projected); err != nil {
		return Preview{}, fmt.Errorf("plan %s: %w", proj.ScriptName, err)
	}
	return Preview{
		ScriptName:   proj.ScriptName,
		Placeholders: placeholders,
		Bindings:     bindings,
		Finalize:     plan,
	}, nil
}

func (p *Publisher) publishWorkersDev(ctx context.Context, proj Project) (string, error) {
	sub, err := p.cp.Subdomain(ctx, proj.AccountID)
	if err != nil {
		return "", fmt.Errorf("get workers.dev subdomain: %w", err)
	}
	if err := p.cp.EnableSubdomain(ctx, proj.AccountID, proj.ScriptName); err != nil {
		return "", fmt.Errorf("enable workers.dev for %s: %w", proj.ScriptName, err)
	}
	return fmt.Sprintf("https://%s.%s.workers.dev", proj.ScriptName, sub), nil
}

// publishRoutes creates missing routes. A pattern already routed to another
// script is an error.
func (p *Publisher) publishRoutes(ctx context.Context, proj Project) ([]string, error) {
	existing, err := p.cp.ListRoutes(ctx, proj.ZoneID)
	if err != nil {
		return nil, fmt.Errorf("list routes of zone %s: %w", proj.ZoneID, err)
	}
	byPattern := make(map[string]controlplane.Route, len(existing))
	for _, r := range existing {
		byPattern[r.Pattern] = r
	}

	var published []string
	for _, pattern := range proj.Routes {
		if r, ok := byPattern[pattern]; ok {
			if r.Script != proj.ScriptName {
				return published, fmt.Errorf("route %q is assigned to script %q", pattern, r.Script)
			}
			published = append(published, pattern)
			continue
		}
		if err := ctx.Err(); err != nil {
			return published, err
		}
		if _, err := p.cp.CreateRoute(ctx, proj.ZoneID, controlplane.Route{Pattern: pattern, Script: proj.ScriptName}); err != nil {
			return published, fmt.Errorf("create route %q: %w", pattern, err)
		}
		published = append(published, pattern)
	}
	return published, nil
}

func scriptBindings(uses []durable.UsedBinding) []controlplane.Binding {
	out := make([]controlplane.Binding, 0, len(uses))
	for _, u := range uses {
		check.Assertf(u.NamespaceID != "", "binding %s uploaded without namespace id", u.Binding)
		out = append(out, controlplane.Binding{
			Type:        controlplane.BindingTypeDurableObjectNamespace,
			Name:        u.Binding,
			NamespaceID: u.NamespaceID,
		})
	}
	return out
}

func publishPlan(proj Project) telemetry.Plan {
	steps := []telemetry.PlannedStep{
		{ID: stepReconcile, Title: "reconciling durable object namespaces"},
		{ID: stepUpload, Title: "uploading script " + proj.ScriptName},
		{ID: stepFinalize, Title: "finalizing durable object namespaces"},
	}
	if proj.WorkersDev {
		steps = append(steps, telemetry.PlannedStep{ID: stepWorkersDev, Title: "enabling workers.dev"})
	}
	if len(proj.Routes) > 0 {
		steps = append(steps, telemetry.PlannedStep{ID: stepRoutes, Title: "publishing routes"})
	}
	if len(proj.Crons) > 0 {
		steps = append(steps, telemetry.PlannedStep{ID: stepSchedules, Title: "updating schedules"})
	}
	return telemetry.Plan{Steps: steps}
}

func validateProject(proj Project) error {
	var errs []error
	if strings.TrimSpace(proj.AccountID) == "" {
		errs = append(errs, errors.New("account id is required"))
	}
	if strings.TrimSpace(proj.ScriptName) == "" {
		errs = append(errs, errors.New("script name is required"))
	}
	if len(proj.Routes) > 0 && strings.TrimSpace(proj.ZoneID) == "" {
		errs = append(errs, errors.New("zone id is required for routes"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}
	return nil
}
