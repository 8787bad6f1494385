package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseStore writes objects through the Supabase Storage HTTP API.
type SupabaseStore struct {
	BaseURL   string
	SecretKey string
	Bucket    string
	Client    *http.Client
}

func (s *SupabaseStore) Put(ctx context.Context, name, contentType string, body []byte) (string, error) {
	if s.Client == nil {
		s.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if s.BaseURL == "" {
		return "", fmt.Errorf("supabase: SUPABASE_URL is not set")
	}
	if s.SecretKey == "" {
		return "", fmt.Errorf("supabase: SUPABASE_SECRET_KEY is not set")
	}
	if s.Bucket == "" {
		return "", fmt.Errorf("supabase: DOCUMENT_BUCKET is not set")
	}
	path := objectPath(name)
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", strings.TrimRight(s.BaseURL, "/"), s.Bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	// Service-role key in both headers, as supabase-js sends it.
	req.Header.Set("apikey", s.SecretKey)
	req.Header.Set("Authorization", "Bearer "+s.SecretKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("supabase request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyStr := string(respBody)
		if resp.StatusCode == http.StatusConflict || strings.Contains(bodyStr, "Duplicate") {
			return "", fmt.Errorf("%w: %s", ErrAlreadyExists, path)
		}
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden {
			if strings.Contains(bodyStr, "Invalid Compact JWS") || strings.Contains(bodyStr, "Unauthorized") {
				return "", fmt.Errorf("supabase storage requires the service_role key, not the anon key (raw body: %s)", bodyStr)
			}
		}
		return "", fmt.Errorf("supabase error: status %d body: %s", resp.StatusCode, bodyStr)
	}
	return fmt.Sprintf("supabase://%s/%s", s.Bucket, path), nil
}
