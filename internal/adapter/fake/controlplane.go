package fake

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"edgepub/internal/adapter/fake/fault"
	"edgepub/internal/controlplane"
	"edgepub/internal/durable"
)

// Fault points evaluated by ControlPlane. Points ending in ".commit" run
// after the remote state changed, which models a response lost or garbled
// on the way back.
const (
	PointListNamespaces        = "namespaces.list"
	PointCreateNamespace       = "namespaces.create"
	PointCreateNamespaceCommit = "namespaces.create.commit"
	PointUpdateNamespace       = "namespaces.update"
	PointUploadScript          = "scripts.upload"
	PointSubdomain             = "subdomain.get"
	PointEnableSubdomain       = "subdomain.enable"
	PointListRoutes            = "routes.list"
	PointCreateRoute           = "routes.create"
	PointUpdateSchedules       = "schedules.update"
)

var _ durable.Directory = (*ControlPlane)(nil)

// ControlPlane is an in-memory control plane for one or more accounts.
type ControlPlane struct {
	CallRecorder
	Faults *fault.Injector

	mu         sync.Mutex
	nextID     int
	namespaces map[string][]durable.NamespaceRecord
	scripts    map[string]controlplane.ScriptUpload
	subdomains map[string]string
	enabled    map[string]bool
	routes     map[string][]controlplane.Route
	schedules  map[string][]controlplane.Schedule
}

// NewControlPlane returns an empty fake control plane.
func NewControlPlane() *ControlPlane {
	return &ControlPlane{
		Faults:     fault.NewInjector(),
		namespaces: make(map[string][]durable.NamespaceRecord),
		scripts:    make(map[string]controlplane.ScriptUpload),
		subdomains: make(map[string]string),
		enabled:    make(map[string]bool),
		routes:     make(map[string][]controlplane.Route),
		schedules:  make(map[string][]controlplane.Schedule),
	}
}

// SeedNamespace stores rec for accountID without recording a call. An empty
// ID is assigned.
func (c *ControlPlane) SeedNamespace(accountID string, rec durable.NamespaceRecord) durable.NamespaceRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec.ID == "" {
		rec.ID = c.allocIDLocked("ns")
	}
	c.namespaces[accountID] = append(c.namespaces[accountID], rec)
	return rec
}

// SetSubdomain registers the workers.dev subdomain of an account.
func (c *ControlPlane) SetSubdomain(accountID, subdomain string) {
	c.mu.Lock()
	c.subdomains[accountID] = subdomain
	c.mu.Unlock()
}

// Namespace returns the stored record for name.
func (c *ControlPlane) Namespace(accountID, name string) (durable.NamespaceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.namespaces[accountID] {
		if rec.Name == name {
			return rec, true
		}
	}
	return durable.NamespaceRecord{}, false
}

// Script returns the last upload of scriptName.
func (c *ControlPlane) Script(accountID, scriptName string) (controlplane.ScriptUpload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.scripts[accountID+"/"+scriptName]
	return s, ok
}

func (c *ControlPlane) ListNamespaces(ctx context.Context, accountID string) ([]durable.NamespaceRecord, error) {
	c.record("ListNamespaces", accountID)
	if err := c.Faults.Eval(PointListNamespaces, accountID); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.namespaces[accountID]), nil
}

func (c *ControlPlane) CreateNamespace(ctx context.Context, accountID string, req durable.CreateNamespaceRequest) (durable.NamespaceRecord, error) {
	c.record("CreateNamespace", accountID, req)
	if err := c.Faults.Eval(PointCreateNamespace, req.Name); err != nil {
		return durable.NamespaceRecord{}, err
	}

	c.mu.Lock()
	for _, rec := range c.namespaces[accountID] {
		if rec.Name == req.Name {
			c.mu.Unlock()
			return durable.NamespaceRecord{}, &controlplane.RemoteError{
				Op:     "create namespace " + req.Name,
				Status: 409,
				Body:   fmt.Sprintf(`{"success":false,"errors":[{"code":10061,"message":"namespace %s already exists"}]}`, req.Name),
			}
		}
	}
	rec := durable.NamespaceRecord{
		ID:     c.allocIDLocked("ns"),
		Name:   req.Name,
		Script: req.Script,
		Class:  req.Class,
	}
	c.namespaces[accountID] = append(c.namespaces[accountID], rec)
	c.mu.Unlock()

	if err := c.Faults.Eval(PointCreateNamespaceCommit, req.Name); err != nil {
		return durable.NamespaceRecord{}, err
	}
	return rec, nil
}

func (c *ControlPlane) UpdateNamespace(ctx context.Context, accountID, namespaceID string, req durable.UpdateNamespaceRequest) error {
	c.record("UpdateNamespace", accountID, namespaceID, req)
	if err := c.Faults.Eval(PointUpdateNamespace, namespaceID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	records := c.namespaces[accountID]
	for i := range records {
		if records[i].ID == namespaceID {
			records[i].Script = req.Script
			records[i].Class = req.Class
			return nil
		}
	}
	return &controlplane.RemoteError{
		Op:     "update namespace " + namespaceID,
		Status: 404,
		Body:   `{"success":false,"errors":[{"code":10066,"message":"namespace not found"}]}`,
	}
}

func (c *ControlPlane) UploadScript(ctx context.Context, accountID string, upload controlplane.ScriptUpload) error {
	c.record("UploadScript", accountID, upload)
	if err := c.Faults.Eval(PointUploadScript, upload.Name); err != nil {
		return err
	}
	c.mu.Lock()
	c.scripts[accountID+"/"+upload.Name] = upload
	c.mu.Unlock()
	return nil
}

func (c *ControlPlane) Subdomain(ctx context.Context, accountID string) (string, error) {
	c.record("Subdomain", accountID)
	if err := c.Faults.Eval(PointSubdomain, accountID); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subdomains[accountID]
	if !ok {
		return "", fmt.Errorf("get subdomain: account %s has no workers.dev subdomain registered", accountID)
	}
	return sub, nil
}

func (c *ControlPlane) EnableSubdomain(ctx context.Context, accountID, scriptName string) error {
	c.record("EnableSubdomain", accountID, scriptName)
	if err := c.Faults.Eval(PointEnableSubdomain, scriptName); err != nil {
		return err
	}
	c.mu.Lock()
	c.enabled[accountID+"/"+scriptName] = true
	c.mu.Unlock()
	return nil
}

func (c *ControlPlane) ListRoutes(ctx context.Context, zoneID string) ([]controlplane.Route, error) {
	c.record("ListRoutes", zoneID)
	if err := c.Faults.Eval(PointListRoutes, zoneID); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.routes[zoneID]), nil
}

func (c *ControlPlane) CreateRoute(ctx context.Context, zoneID string, route controlplane.Route) (controlplane.Route, error) {
	c.record("CreateRoute", zoneID, route)
	if err := c.Faults.Eval(PointCreateRoute, route.Pattern); err != nil {
		return controlplane.Route{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	route.ID = c.allocIDLocked("route")
	c.routes[zoneID] = append(c.routes[zoneID], route)
	return route, nil
}

func (c *ControlPlane) UpdateSchedules(ctx context.Context, accountID, scriptName string, crons []string) ([]controlplane.Schedule, error) {
	c.record("UpdateSchedules", accountID, scriptName, crons)
	if err := c.Faults.Eval(PointUpdateSchedules, scriptName); err != nil {
		return nil, err
	}
	out := make([]controlplane.Schedule, 0, len(crons))
	for _, cron := range crons {
		out = append(out, controlplane.Schedule{Cron: cron})
	}
	c.mu.Lock()
	c.schedules[accountID+"/"+scriptName] = out
	c.mu.Unlock()
	return slices.Clone(out), nil
}

func (c *ControlPlane) allocIDLocked(prefix string) string {
	c.nextID++
	return fmt.Sprintf("%s-%d", prefix, c.nextID)
}
