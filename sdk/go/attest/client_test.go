package attest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAttestProveSendsIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/attestations" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("prove") != "true" {
			t.Fatalf("expected prove=true, got %q", r.URL.RawQuery)
		}
		if r.Header.Get("Idempotency-Key") != "key-1" {
			t.Fatalf("missing idempotency key")
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("unexpected body: %v", err)
		}
		if body["kind"] != "xrp_balance" {
			t.Fatalf("unexpected kind: %v", body["kind"])
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(Attestation{
			Kind:         "xrp_balance",
			PublicValues: "0x01",
			Job:          &Job{ID: "key-1", Status: "pending"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	out, err := client.Attest(context.Background(), map[string]any{
		"kind":    "xrp_balance",
		"balance": map[string]any{"address": "rLAc6d8QtzMMhp1ziGvBGzLk81gDfM25du", "amount": 1},
	}, AttestOptions{Prove: true, IdempotencyKey: "key-1"})
	if err != nil {
		t.Fatalf("attest: %v", err)
	}
	if out.Job == nil || out.Job.ID != "key-1" {
		t.Fatalf("unexpected job: %+v", out.Job)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"code":"ATTESTATION_MALFORMED_FIELD","message":"address: invalid","field":"address"}}`))
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	_, err := client.Attest(context.Background(), map[string]string{"kind": "xrp_balance"}, AttestOptions{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Field != "address" || apiErr.Code != "ATTESTATION_MALFORMED_FIELD" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestListJobsEncodesFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if r.URL.Path != "/api/v1/jobs" || query.Get("limit") != "5" || len(query["status"]) != 2 || query.Get("kind") != "btc_tx" {
			t.Fatalf("unexpected request: %s", r.URL.String())
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jobs": []Job{{ID: "a"}, {ID: "b"}}})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	jobs, err := client.ListJobs(context.Background(), JobFilter{Statuses: []string{"pending", "failed"}, Kinds: []string{"btc_tx"}, Limit: 5})
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
}

func TestWaitForJobPolls(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/jobs/job-1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		calls++
		status := "running"
		if calls >= 3 {
			status = "succeeded"
		}
		_ = json.NewEncoder(w).Encode(Job{ID: "job-1", Status: status, Result: &ProofResult{Verified: calls >= 3}})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	job, err := client.WaitForJob(ctx, "job-1", 5*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if job.Status != "succeeded" || !job.Result.Verified || calls != 3 {
		t.Fatalf("unexpected job after %d calls: %+v", calls, job)
	}
}

func TestNewClientRejectsInvalidURL(t *testing.T) {
	if _, err := NewClient("localhost", nil); err == nil {
		t.Fatal("expected error for url without scheme")
	}
}

func TestAPIKeyHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total":0}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.JobStats(context.Background(), JobFilter{}); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got != "" {
		t.Fatalf("unexpected authorization header: %q", got)
	}

	client.SetAPIKey("secret")
	if _, err := client.JobStats(context.Background(), JobFilter{}); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got != "Bearer secret" {
		t.Fatalf("unexpected authorization header: %q", got)
	}
}
