package admincli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/resumegate/internal/common"
)

type adminAuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Error   string `json:"error"`
}

// FetchToken exchanges the admin password for an admin role token at the
// gateway's HTTP endpoint.
func FetchToken(ctx context.Context, hc *http.Client, baseURL string, password []byte) (string, error) {
	body, err := json.Marshal(map[string]string{"password": string(password)})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(baseURL, "/") + "/api/admin-auth"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out adminAuthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return "", fmt.Errorf("admin-auth: status %d: %w", resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", common.ErrInvalidCredential
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", common.ErrRateLimited
	case resp.StatusCode != http.StatusOK || !out.Success || out.Token == "":
		return "", fmt.Errorf("admin-auth: status %d: %s", resp.StatusCode, out.Error)
	}
	return out.Token, nil
}
