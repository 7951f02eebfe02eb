package m2kapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	version "github.com/hashicorp/go-version"
)

// ServerVersion returns the version string reported by the backend. The
// endpoint answers either JSON ({"version": "..."}) or "version: ..." text.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	endpoint, err := c.endpoint("version")
	if err != nil {
		return "", err
	}
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json, text/plain")
	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		return "", fmt.Errorf("get server version: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", fmt.Errorf("read server version: %w", err)
	}
	return parseVersionBody(raw)
}

func parseVersionBody(raw []byte) (string, error) {
	var body struct {
		Version string `json:"version"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Version != "" {
		return body.Version, nil
	}
	sc := bufio.NewScanner(strings.NewReader(string(raw)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if v, ok := strings.CutPrefix(line, "version:"); ok {
			return strings.TrimSpace(v), nil
		}
		if line != "" && !strings.Contains(line, ":") {
			return line, nil
		}
	}
	return "", fmt.Errorf("no version in server response")
}

// CheckCompatible fails when the server reports a version older than minVersion.
// An empty minVersion accepts any server.
func (c *Client) CheckCompatible(ctx context.Context, minVersion string) (string, error) {
	got, err := c.ServerVersion(ctx)
	if err != nil {
		return "", err
	}
	if minVersion == "" {
		return got, nil
	}
	return got, compareVersions(got, minVersion)
}

func compareVersions(got, minVersion string) error {
	have, err := version.NewVersion(got)
	if err != nil {
		return fmt.Errorf("parse server version %q: %w", got, err)
	}
	want, err := version.NewVersion(minVersion)
	if err != nil {
		return fmt.Errorf("parse minimum version %q: %w", minVersion, err)
	}
	if have.LessThan(want) {
		return fmt.Errorf("server version %s is older than the required %s", have, want)
	}
	return nil
}
