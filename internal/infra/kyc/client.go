package kyc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/core/port"
	"github.com/Adekabang/DigitalID-sub000/internal/infra/config"
	"github.com/Adekabang/DigitalID-sub000/internal/orchestrator/retry"
)

// leveledZap adapts zap to the retryablehttp logger interface. Transport
// errors surface as warnings because the client retries them itself.
type leveledZap struct {
	inner *zap.SugaredLogger
}

func (l leveledZap) Error(msg string, keysAndValues ...any) {
	l.inner.Warnw(msg, keysAndValues...)
}

func (l leveledZap) Warn(msg string, keysAndValues ...any) {
	l.inner.Warnw(msg, keysAndValues...)
}

func (l leveledZap) Info(msg string, keysAndValues ...any) {
	l.inner.Infow(msg, keysAndValues...)
}

func (l leveledZap) Debug(msg string, keysAndValues ...any) {
	l.inner.Debugw(msg, keysAndValues...)
}

// Client talks to the external KYC provider over HTTP. Transport-level
// failures are retried by the underlying client; anything that still
// fails afterwards is reported to the caller with a retry class attached.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

// NewClient builds a provider client from the KYC settings.
func NewClient(cfg config.KYCSettings, logger *zap.Logger) *Client {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = cfg.RetryWaitMin
	client.RetryWaitMax = cfg.RetryWaitMax
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = leveledZap{inner: logger.Sugar()}

	return &Client{
		http:    client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

type verifyRequest struct {
	Subject   string `json:"subject"`
	ClaimType string `json:"claim_type"`
	Metadata  string `json:"metadata,omitempty"`
}

type verifyResponse struct {
	Approved bool   `json:"approved"`
	Evidence string `json:"evidence,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Verify submits a verification request for the subject. A non-2xx reply
// after retries is transient for server errors and terminal for client
// errors, so the orchestrator either leaves the claim pending or rejects it.
func (c *Client) Verify(ctx context.Context, subject string, claimType domain.ClaimType, metadata string) (port.KYCResult, error) {
	body, err := json.Marshal(verifyRequest{
		Subject:   subject,
		ClaimType: string(claimType),
		Metadata:  metadata,
	})
	if err != nil {
		return port.KYCResult{}, retry.Terminal(fmt.Errorf("encode verify request: %w", err))
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/verifications", bytes.NewReader(body))
	if err != nil {
		return port.KYCResult{}, retry.Terminal(fmt.Errorf("build verify request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return port.KYCResult{}, retry.Transient(fmt.Errorf("kyc provider request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("kyc provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return port.KYCResult{}, retry.Transient(err)
		}
		return port.KYCResult{}, retry.Terminal(err)
	}

	var decoded verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return port.KYCResult{}, retry.Terminal(fmt.Errorf("decode verify response: %w", err))
	}

	result := port.KYCResult{
		Approved: decoded.Approved,
		Payload:  decoded.Evidence,
		Reason:   decoded.Reason,
	}

	if result.Approved && result.Payload == "" {
		result.Payload = fmt.Sprintf("verified:%s:%s", claimType, time.Now().UTC().Format(time.RFC3339))
	}

	return result, nil
}

var _ port.KYCProvider = (*Client)(nil)
