package durable_test

import (
	"context"
	"errors"
	"testing"

	"edgepub/internal/adapter/fake"
	"edgepub/internal/controlplane"
	"edgepub/internal/durable"

	"github.com/containerd/errdefs"
)

const account = "acct-1"

func TestReconcileCreatesPlaceholderForSelfReferentialNamespace(t *testing.T) {
	cp := fake.NewControlPlane()
	reg := durable.NewRegistry()
	implemented := []durable.ImplementedNamespace{{NamespaceName: "Counter", ClassName: "Counter"}}
	used := []durable.UsedBinding{{Binding: "COUNTER", NamespaceName: "Counter"}}

	resolved, err := durable.Reconcile(context.Background(), cp, account, "worker", implemented, used, reg)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	creates := cp.Calls("CreateNamespace")
	if len(creates) != 1 {
		t.Fatalf("CreateNamespace calls = %d, want 1", len(creates))
	}
	req := creates[0].Args[1].(durable.CreateNamespaceRequest)
	if req.Name != "Counter" || req.Script != "" || req.Class != "" {
		t.Fatalf("placeholder request = %+v, want name only", req)
	}

	remote, ok := cp.Namespace(account, "Counter")
	if !ok {
		t.Fatal("placeholder missing on control plane")
	}
	if resolved[0].NamespaceID == "" || resolved[0].NamespaceID != remote.ID {
		t.Fatalf("resolved id = %q, want %q", resolved[0].NamespaceID, remote.ID)
	}
	if used[0].NamespaceID != "" {
		t.Fatalf("input binding mutated: %+v", used[0])
	}
	if rec, ok := reg.Lookup("Counter"); !ok || !rec.IsPlaceholder() {
		t.Fatalf("registry entry = %+v, %v, want placeholder", rec, ok)
	}
}

func TestReconcileUsesExistingNamespaceWithoutCreating(t *testing.T) {
	cp := fake.NewControlPlane()
	existing := cp.SeedNamespace(account, durable.NamespaceRecord{ID: "77", Name: "other-Session", Script: "other", Class: "Session"})
	reg := durable.NewRegistry()
	used := []durable.UsedBinding{{Binding: "SESSIONS", NamespaceName: "other-Session"}}

	resolved, err := durable.Reconcile(context.Background(), cp, account, "worker", nil, used, reg)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if n := cp.Count("CreateNamespace"); n != 0 {
		t.Fatalf("CreateNamespace calls = %d, want 0", n)
	}
	if resolved[0].NamespaceID != existing.ID {
		t.Fatalf("resolved id = %q, want %q", resolved[0].NamespaceID, existing.ID)
	}
}

func TestReconcileSkipsPlaceholderWhenNamespaceAlreadyKnown(t *testing.T) {
	cp := fake.NewControlPlane()
	cp.SeedNamespace(account, durable.NamespaceRecord{ID: "5", Name: "Counter"})
	reg := durable.NewRegistry()
	implemented := []durable.ImplementedNamespace{{NamespaceName: "Counter", ClassName: "Counter"}}
	used := []durable.UsedBinding{{Binding: "COUNTER", NamespaceName: "Counter"}}

	resolved, err := durable.Reconcile(context.Background(), cp, account, "worker", implemented, used, reg)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if n := cp.Count("CreateNamespace"); n != 0 {
		t.Fatalf("CreateNamespace calls = %d, want 0", n)
	}
	if resolved[0].NamespaceID != "5" {
		t.Fatalf("resolved id = %q, want 5", resolved[0].NamespaceID)
	}
}

func TestReconcileUnresolvableBindingFailsClosed(t *testing.T) {
	cp := fake.NewControlPlane()
	reg := durable.NewRegistry()
	implemented := []durable.ImplementedNamespace{{NamespaceName: "Counter", ClassName: "Counter"}}
	used := []durable.UsedBinding{
		{Binding: "COUNTER", NamespaceName: "Counter"},
		{Binding: "MISSING", NamespaceName: "nowhere"},
	}

	_, err := durable.Reconcile(context.Background(), cp, account, "worker", implemented, used, reg)
	var notFound *durable.NamespaceNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Reconcile() error = %v, want NamespaceNotFoundError", err)
	}
	if notFound.Name != "nowhere" || notFound.Binding != "MISSING" {
		t.Fatalf("not found = %+v, want nowhere/MISSING", notFound)
	}
	if !errdefs.IsNotFound(err) {
		t.Fatalf("errdefs.IsNotFound(%v) = false", err)
	}
	if n := cp.Count("UpdateNamespace"); n != 0 {
		t.Fatalf("UpdateNamespace calls = %d, want 0", n)
	}
}

func TestReconcileListFailureAborts(t *testing.T) {
	cp := fake.NewControlPlane()
	remoteErr := &controlplane.RemoteError{Op: "list namespaces", Status: 403, Body: `{"success":false}`}
	cp.Faults.FailOnce(fake.PointListNamespaces, remoteErr)

	_, err := durable.Reconcile(context.Background(), cp, account, "worker",
		[]durable.ImplementedNamespace{{NamespaceName: "Counter", ClassName: "Counter"}},
		[]durable.UsedBinding{{Binding: "COUNTER", NamespaceName: "Counter"}},
		durable.NewRegistry())

	var got *controlplane.RemoteError
	if !errors.As(err, &got) {
		t.Fatalf("Reconcile() error = %v, want RemoteError", err)
	}
	if got.Status != 403 || got.Body != `{"success":false}` {
		t.Fatalf("remote error = %+v, want verbatim status and body", got)
	}
	if n := cp.Count("CreateNamespace"); n != 0 {
		t.Fatalf("CreateNamespace calls = %d, want 0", n)
	}
}

func TestBreakCyclesKeepsEarlierPlaceholdersOnFailure(t *testing.T) {
	cp := fake.NewControlPlane()
	cp.Faults.SetHook(fake.PointCreateNamespace, func(args ...any) error {
		if args[0] == "B" {
			return &controlplane.RemoteError{Op: "create namespace B", Status: 500, Body: "boom"}
		}
		return nil
	})
	reg := durable.NewRegistry()
	implemented := []durable.ImplementedNamespace{
		{NamespaceName: "A", ClassName: "A"},
		{NamespaceName: "B", ClassName: "B"},
		{NamespaceName: "C", ClassName: "C"},
	}
	used := []durable.UsedBinding{
		{Binding: "A", NamespaceName: "A"},
		{Binding: "B", NamespaceName: "B"},
		{Binding: "C", NamespaceName: "C"},
	}

	created, err := durable.BreakCycles(context.Background(), cp, account, implemented, used, reg)
	if err == nil {
		t.Fatal("BreakCycles() expected error")
	}
	if !errdefs.IsUnavailable(err) {
		t.Fatalf("errdefs.IsUnavailable(%v) = false", err)
	}
	if len(created) != 1 || created[0].Name != "A" {
		t.Fatalf("created = %+v, want [A]", created)
	}
	if !reg.Contains("A") || reg.Contains("B") || reg.Contains("C") {
		t.Fatalf("registry names = %+v, want only A", reg.Records())
	}

	// A re-run adopts A and only creates the rest.
	cp.Faults.Reset()
	cp.Reset()
	reg = durable.NewRegistry()
	if _, err := durable.Reconcile(context.Background(), cp, account, "worker", implemented, used, reg); err != nil {
		t.Fatalf("Reconcile() rerun error = %v", err)
	}
	var names []string
	for _, call := range cp.Calls("CreateNamespace") {
		names = append(names, call.Args[1].(durable.CreateNamespaceRequest).Name)
	}
	if len(names) != 2 || names[0] != "B" || names[1] != "C" {
		t.Fatalf("rerun creates = %v, want [B C]", names)
	}
}

func TestBreakCyclesMalformedCreateIsFatalAndAdoptedOnRerun(t *testing.T) {
	cp := fake.NewControlPlane()
	cp.Faults.FailOnce(fake.PointCreateNamespaceCommit, &controlplane.MalformedResponseError{
		Op: "create namespace Counter", Status: 200, Body: "<html>", Err: errors.New("invalid character '<'"),
	})
	implemented := []durable.ImplementedNamespace{{NamespaceName: "Counter", ClassName: "Counter"}}
	used := []durable.UsedBinding{{Binding: "COUNTER", NamespaceName: "Counter"}}

	_, err := durable.Reconcile(context.Background(), cp, account, "worker", implemented, used, durable.NewRegistry())
	var malformed *controlplane.MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("Reconcile() error = %v, want MalformedResponseError", err)
	}

	cp.Reset()
	resolved, err := durable.Reconcile(context.Background(), cp, account, "worker", implemented, used, durable.NewRegistry())
	if err != nil {
		t.Fatalf("Reconcile() rerun error = %v", err)
	}
	if n := cp.Count("CreateNamespace"); n != 0 {
		t.Fatalf("rerun CreateNamespace calls = %d, want 0", n)
	}
	remote, _ := cp.Namespace(account, "Counter")
	if resolved[0].NamespaceID != remote.ID {
		t.Fatalf("resolved id = %q, want %q", resolved[0].NamespaceID, remote.ID)
	}
}

func TestReconcileStopsOnCanceledContext(t *testing.T) {
	cp := fake.NewControlPlane()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := durable.Reconcile(ctx, cp, account, "worker",
		[]durable.ImplementedNamespace{{NamespaceName: "Counter", ClassName: "Counter"}},
		[]durable.UsedBinding{{Binding: "COUNTER", NamespaceName: "Counter"}},
		durable.NewRegistry())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Reconcile() error = %v, want context.Canceled", err)
	}
	if calls := cp.Calls(""); len(calls) != 0 {
		t.Fatalf("calls = %v, want none", cp.Methods())
	}
}
