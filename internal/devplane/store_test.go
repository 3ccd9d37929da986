package devplane

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"edgepub/internal/controlplane"
	"edgepub/internal/durable"

	"github.com/containerd/errdefs"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "devplane.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreNamespaceLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	placeholder, err := store.CreateNamespace(ctx, "acct", durable.CreateNamespaceRequest{Name: "counter-Counter"})
	if err != nil {
		t.Fatalf("CreateNamespace() error = %v", err)
	}
	if placeholder.ID == "" || !placeholder.IsPlaceholder() {
		t.Fatalf("CreateNamespace() = %+v, want placeholder with id", placeholder)
	}

	_, err = store.CreateNamespace(ctx, "acct", durable.CreateNamespaceRequest{Name: "counter-Counter"})
	if !errdefs.IsConflict(err) {
		t.Fatalf("duplicate CreateNamespace() error = %v, want conflict", err)
	}

	_, err = store.UpdateNamespace(ctx, "acct", placeholder.ID, durable.UpdateNamespaceRequest{Script: "counter", Class: "Counter"})
	if !errdefs.IsInvalidArgument(err) {
		t.Fatalf("UpdateNamespace() before upload error = %v, want invalid argument", err)
	}

	bindings := []controlplane.Binding{{Type: controlplane.BindingTypeDurableObjectNamespace, Name: "COUNTER", NamespaceID: placeholder.ID}}
	if err := store.PutScript(ctx, "acct", "counter", []byte("js"), bindings); err != nil {
		t.Fatalf("PutScript() error = %v", err)
	}

	updated, err := store.UpdateNamespace(ctx, "acct", placeholder.ID, durable.UpdateNamespaceRequest{Script: "counter", Class: "Counter"})
	if err != nil {
		t.Fatalf("UpdateNamespace() error = %v", err)
	}
	want := durable.NamespaceRecord{ID: placeholder.ID, Name: "counter-Counter", Script: "counter", Class: "Counter"}
	if updated != want {
		t.Fatalf("UpdateNamespace() = %+v, want %+v", updated, want)
	}

	_, err = store.UpdateNamespace(ctx, "acct", "missing", durable.UpdateNamespaceRequest{Script: "counter", Class: "Counter"})
	if !errdefs.IsNotFound(err) {
		t.Fatalf("UpdateNamespace(missing) error = %v, want not found", err)
	}

	list, err := store.ListNamespaces(ctx, "acct")
	if err != nil {
		t.Fatalf("ListNamespaces() error = %v", err)
	}
	if len(list) != 1 || list[0] != want {
		t.Fatalf("ListNamespaces() = %+v, want [%+v]", list, want)
	}

	other, err := store.ListNamespaces(ctx, "other")
	if err != nil {
		t.Fatalf("ListNamespaces(other) error = %v", err)
	}
	if other == nil || len(other) != 0 {
		t.Fatalf("ListNamespaces(other) = %#v, want empty non-nil", other)
	}
}

func TestStorePutScriptRejectsUnknownNamespace(t *testing.T) {
	store := openTestStore(t)
	bindings := []controlplane.Binding{{Type: controlplane.BindingTypeDurableObjectNamespace, Name: "COUNTER", NamespaceID: "nope"}}

	err := store.PutScript(context.Background(), "acct", "counter", []byte("js"), bindings)
	if !errdefs.IsInvalidArgument(err) {
		t.Fatalf("PutScript() error = %v, want invalid argument", err)
	}
}

func TestStoreCreateImplementedNamespaceNeedsScript(t *testing.T) {
	store := openTestStore(t)

	_, err := store.CreateNamespace(context.Background(), "acct",
		durable.CreateNamespaceRequest{Name: "counter-Counter", Script: "counter", Class: "Counter"})
	if !errdefs.IsInvalidArgument(err) {
		t.Fatalf("CreateNamespace() error = %v, want invalid argument", err)
	}
}

func TestStoreRoutesAndSchedules(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	route, err := store.CreateRoute(ctx, "zone", controlplane.Route{Pattern: "example.com/*", Script: "counter"})
	if err != nil {
		t.Fatalf("CreateRoute() error = %v", err)
	}
	if route.ID == "" {
		t.Fatal("CreateRoute() returned empty id")
	}
	if _, err := store.CreateRoute(ctx, "zone", controlplane.Route{Pattern: "example.com/*", Script: "other"}); !errdefs.IsConflict(err) {
		t.Fatalf("duplicate CreateRoute() error = %v, want conflict", err)
	}
	routes, err := store.ListRoutes(ctx, "zone")
	if err != nil {
		t.Fatalf("ListRoutes() error = %v", err)
	}
	if len(routes) != 1 || routes[0] != route {
		t.Fatalf("ListRoutes() = %+v, want [%+v]", routes, route)
	}

	if err := store.ReplaceSchedules(ctx, "acct", "counter", []string{"0 * * * *"}); !errdefs.IsNotFound(err) {
		t.Fatalf("ReplaceSchedules() without script error = %v, want not found", err)
	}
	if err := store.PutScript(ctx, "acct", "counter", []byte("js"), nil); err != nil {
		t.Fatalf("PutScript() error = %v", err)
	}
	if err := store.ReplaceSchedules(ctx, "acct", "counter", []string{"0 * * * *", "*/5 * * * *"}); err != nil {
		t.Fatalf("ReplaceSchedules() error = %v", err)
	}
	if err := store.ReplaceSchedules(ctx, "acct", "counter", []string{"*/5 * * * *"}); err != nil {
		t.Fatalf("ReplaceSchedules() second error = %v", err)
	}
	crons, err := store.Schedules(ctx, "acct", "counter")
	if err != nil {
		t.Fatalf("Schedules() error = %v", err)
	}
	if !slices.Equal(crons, []string{"*/5 * * * *"}) {
		t.Fatalf("Schedules() = %v", crons)
	}
}
