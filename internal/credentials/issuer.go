// Package credentials manages time-boxed storage credentials for a run.
package credentials

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"lakeloader/internal/config"
	"lakeloader/internal/domain"
)

// expiryFormat is the fixed UTC timestamp format the identity service uses.
const expiryFormat = "2006-01-02T15:04:05Z"

// HTTPIssuer exchanges a fixed identity for storage credentials over a
// trust-anchored HTTPS channel.
type HTTPIssuer struct {
	endpoint string
	username string
	password string
	account  string
	role     string
	client   *http.Client
}

var _ domain.CredentialIssuer = (*HTTPIssuer)(nil)

// NewHTTPIssuer builds an issuer from the identity configuration. When a CA
// bundle path is configured it becomes the only trust anchor for the channel.
func NewHTTPIssuer(cfg config.IdentityConfig) (*HTTPIssuer, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	if cfg.CABundle != "" {
		pem, err := os.ReadFile(cfg.CABundle) //nolint:gosec // path from config
		if err != nil {
			return nil, fmt.Errorf("read CA bundle %s: %w", cfg.CABundle, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("CA bundle %s contains no usable certificates", cfg.CABundle)
		}
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
		}
	}

	return &HTTPIssuer{
		endpoint: cfg.Endpoint,
		username: cfg.Username,
		password: cfg.Password,
		account:  cfg.Account,
		role:     cfg.Role,
		client:   client,
	}, nil
}

type issueRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Account  string `json:"account"`
	Role     string `json:"role"`
}

type issueResponse struct {
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	SessionToken string `json:"session_token"`
	Expiry       string `json:"expiry"`
}

// Issue performs one identity-service round-trip. Non-success responses and
// malformed payloads are classified as AuthFailureError; the caller wraps
// this in a retry policy.
func (i *HTTPIssuer) Issue(ctx context.Context) (domain.CredentialBundle, error) {
	body, err := json.Marshal(issueRequest{
		Username: i.username,
		Password: i.password,
		Account:  i.account,
		Role:     i.role,
	})
	if err != nil {
		return domain.CredentialBundle{}, fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.CredentialBundle{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return domain.CredentialBundle{}, domain.ErrAuthFailure("identity service unreachable: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.CredentialBundle{}, domain.ErrAuthFailure("read identity response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.CredentialBundle{}, domain.ErrAuthFailure(
			"identity service returned %d: %s", resp.StatusCode, truncate(payload, 200))
	}

	var out issueResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return domain.CredentialBundle{}, domain.ErrAuthFailure("malformed identity payload: %v", err)
	}
	if out.AccessKey == "" || out.SecretKey == "" || out.Expiry == "" {
		return domain.CredentialBundle{}, domain.ErrAuthFailure("identity payload missing required fields")
	}

	expiry, err := time.Parse(expiryFormat, out.Expiry)
	if err != nil {
		return domain.CredentialBundle{}, domain.ErrAuthFailure("malformed expiry %q: %v", out.Expiry, err)
	}

	return domain.CredentialBundle{
		AccessKey:    out.AccessKey,
		SecretKey:    out.SecretKey,
		SessionToken: out.SessionToken,
		Expiry:       expiry.UTC(),
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
