package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

const scriptPartName = "script"

// UploadScript uploads a built script with its bindings metadata as a
// multipart form: a "metadata" JSON part and the script body part.
func (c *Client) UploadScript(ctx context.Context, accountID string, upload ScriptUpload) error {
	op := "upload script " + upload.Name
	body, contentType, err := encodeScriptForm(upload)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req := request{
		op:          op,
		method:      http.MethodPut,
		segments:    []string{"accounts", accountID, "workers", "scripts", upload.Name},
		body:        body,
		contentType: contentType,
	}
	var out scriptResult
	return c.do(ctx, req, &out)
}

func encodeScriptForm(upload ScriptUpload) (*bytes.Buffer, string, error) {
	bindings := upload.Bindings
	if bindings == nil {
		bindings = []Binding{}
	}
	meta, err := json.Marshal(ScriptMetadata{BodyPart: scriptPartName, Bindings: bindings})
	if err != nil {
		return nil, "", fmt.Errorf("marshal metadata: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaHeader := make(textproto.MIMEHeader)
	metaHeader.Set("Content-Disposition", `form-data; name="metadata"`)
	metaHeader.Set("Content-Type", "application/json")
	part, err := w.CreatePart(metaHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(meta); err != nil {
		return nil, "", err
	}

	scriptHeader := make(textproto.MIMEHeader)
	scriptHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, scriptPartName, upload.Name+".js"))
	scriptHeader.Set("Content-Type", "application/javascript")
	part, err = w.CreatePart(scriptHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Body); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// Subdomain returns the account's workers.dev subdomain.
func (c *Client) Subdomain(ctx context.Context, accountID string) (string, error) {
	req, err := jsonRequest("get subdomain", http.MethodGet, nil, "accounts", accountID, "workers", "subdomain")
	if err != nil {
		return "", err
	}
	var out subdomainResult
	if err := c.do(ctx, req, &out); err != nil {
		return "", err
	}
	if out.Subdomain == "" {
		return "", fmt.Errorf("get subdomain: account %s has no workers.dev subdomain registered", accountID)
	}
	return out.Subdomain, nil
}

// EnableSubdomain publishes the script on workers.dev.
func (c *Client) EnableSubdomain(ctx context.Context, accountID, scriptName string) error {
	req, err := jsonRequest("enable workers.dev for "+scriptName, http.MethodPost,
		map[string]bool{"enabled": true},
		"accounts", accountID, "workers", "scripts", scriptName, "subdomain")
	if err != nil {
		return err
	}
	return c.do(ctx, req, nil)
}

// UpdateSchedules replaces the cron triggers of a script and returns the
// schedules the control plane accepted.
func (c *Client) UpdateSchedules(ctx context.Context, accountID, scriptName string, crons []string) ([]Schedule, error) {
	schedules := make([]Schedule, 0, len(crons))
	for _, cron := range crons {
		schedules = append(schedules, Schedule{Cron: cron})
	}
	req, err := jsonRequest("update schedules for "+scriptName, http.MethodPut, schedules,
		"accounts", accountID, "workers", "scripts", scriptName, "schedules")
	if err != nil {
		return nil, err
	}
	var out schedulesResult
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out.Schedules, nil
}
