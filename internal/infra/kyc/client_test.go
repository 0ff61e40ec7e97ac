package kyc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Adekabang/DigitalID-sub000/internal/core/domain"
	"github.com/Adekabang/DigitalID-sub000/internal/infra/config"
	"github.com/Adekabang/DigitalID-sub000/internal/orchestrator/retry"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	return NewClient(config.KYCSettings{
		BaseURL:      baseURL,
		APIKey:       "test-key",
		Timeout:      2 * time.Second,
		RetryMax:     1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}, zaptest.NewLogger(t))
}

func TestClientVerifyApproved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/verifications" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header: %s", got)
		}

		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		if req.Subject != "identity-1" || req.ClaimType != string(domain.ClaimTypeKYC) {
			t.Errorf("unexpected request body: %+v", req)
		}

		json.NewEncoder(w).Encode(verifyResponse{Approved: true, Evidence: "doc-check-passed"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Verify(context.Background(), "identity-1", domain.ClaimTypeKYC, "")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if !result.Approved {
		t.Fatal("expected approval")
	}

	if result.Payload != "doc-check-passed" {
		t.Fatalf("unexpected payload: %s", result.Payload)
	}
}

func TestClientVerifyDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(verifyResponse{Approved: false, Reason: "document expired"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Verify(context.Background(), "identity-1", domain.ClaimTypeBasic, "")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if result.Approved {
		t.Fatal("expected denial")
	}

	if result.Reason != "document expired" {
		t.Fatalf("unexpected reason: %s", result.Reason)
	}
}

func TestClientVerifyRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(verifyResponse{Approved: true, Evidence: "ok"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Verify(context.Background(), "identity-2", domain.ClaimTypeKYC, "")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if !result.Approved {
		t.Fatal("expected approval after retry")
	}

	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 provider calls, got %d", got)
	}
}

func TestClientVerifyClientErrorIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("unknown claim type"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Verify(context.Background(), "identity-3", domain.ClaimTypeFull, "")
	if err == nil {
		t.Fatal("expected error for client error status")
	}

	if retry.Classify(err).IsTransient() {
		t.Fatalf("expected terminal classification, got transient: %v", err)
	}
}

func TestStubProviderVerdicts(t *testing.T) {
	approveAll := NewStubProvider(true, zaptest.NewLogger(t))

	result, err := approveAll.Verify(context.Background(), "identity-1", domain.ClaimTypeKYC, "deny")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !result.Approved {
		t.Fatal("approve-all stub should approve")
	}

	selective := NewStubProvider(false, zaptest.NewLogger(t))

	result, err = selective.Verify(context.Background(), "identity-1", domain.ClaimTypeKYC, "deny")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if result.Approved {
		t.Fatal("stub should deny when metadata carries the deny marker")
	}
	if result.Reason == "" {
		t.Fatal("denial should carry a reason")
	}

	result, err = selective.Verify(context.Background(), "identity-1", domain.ClaimTypeBasic, "")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !result.Approved {
		t.Fatal("stub should approve without the deny marker")
	}
}
