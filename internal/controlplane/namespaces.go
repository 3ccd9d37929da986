package controlplane

import (
	"context"
	"errors"
	"net/http"

	"edgepub/internal/durable"
)

var _ durable.Directory = (*Client)(nil)

func namespacesPath(accountID string, rest ...string) []string {
	return append([]string{"accounts", accountID, "workers", "durable_objects", "namespaces"}, rest...)
}

// ListNamespaces returns every durable object namespace of the account.
func (c *Client) ListNamespaces(ctx context.Context, accountID string) ([]durable.NamespaceRecord, error) {
	req, err := jsonRequest("list namespaces", http.MethodGet, nil, namespacesPath(accountID)...)
	if err != nil {
		return nil, err
	}
	var out []durable.NamespaceRecord
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateNamespace creates a namespace. Leaving script and class empty
// creates a placeholder.
func (c *Client) CreateNamespace(ctx context.Context, accountID string, create durable.CreateNamespaceRequest) (durable.NamespaceRecord, error) {
	req, err := jsonRequest("create namespace "+create.Name, http.MethodPost, create, namespacesPath(accountID)...)
	if err != nil {
		return durable.NamespaceRecord{}, err
	}
	var out durable.NamespaceRecord
	if err := c.do(ctx, req, &out); err != nil {
		return durable.NamespaceRecord{}, err
	}
	if out.ID == "" {
		return durable.NamespaceRecord{}, &MalformedResponseError{
			Op:     req.op,
			Status: http.StatusOK,
			Err:    errors.New("namespace id missing from result"),
		}
	}
	return out, nil
}

// UpdateNamespace replaces the script and class of the namespace with id.
func (c *Client) UpdateNamespace(ctx context.Context, accountID, namespaceID string, update durable.UpdateNamespaceRequest) error {
	req, err := jsonRequest("update namespace "+namespaceID, http.MethodPut, update, namespacesPath(accountID, namespaceID)...)
	if err != nil {
		return err
	}
	return c.do(ctx, req, nil)
}
