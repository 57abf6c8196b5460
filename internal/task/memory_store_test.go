package task

import (
	"context"
	"testing"
	"time"

	"ZKAttest-Chain/internal/attestation"
)

func newJob(id string, kind attestation.Kind) *Job {
	return &Job{
		ID:           id,
		Kind:         kind,
		Program:      string(kind) + "-v1",
		Encoding:     attestation.SchemePacked,
		PublicValues: []byte{1, 2, 3},
		Status:       StatusPending,
		MaxRetries:   3,
	}
}

func TestMemoryStoreListWithFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().Add(-2 * time.Minute)

	for _, job := range []*Job{
		newJob("j1", attestation.KindCollateral),
		newJob("j2", attestation.KindBTCTx),
		newJob("j3", attestation.KindXRPTx),
	} {
		if err := store.Create(ctx, job); err != nil {
			t.Fatalf("create job %s: %v", job.ID, err)
		}
	}

	if err := store.MarkFailed(ctx, "j2", CodeJobProcessing, "boom", true); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "j3", ProofResult{System: "mock", Verified: true}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	store.mu.Lock()
	store.jobs["j1"].UpdatedAt = base.Unix()
	store.jobs["j2"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.jobs["j3"].UpdatedAt = base.Add(60 * time.Second).Unix()
	store.mu.Unlock()

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].ID != "j3" {
		t.Fatalf("expected newest job first, got %+v", all)
	}

	asc, err := store.List(ctx, BuildListOptions(WithSortOrder(SortByUpdatedAsc), WithOffset(1), WithLimit(1)))
	if err != nil {
		t.Fatalf("list asc: %v", err)
	}
	if len(asc) != 1 || asc[0].ID != "j2" {
		t.Fatalf("unexpected paged list: %+v", asc)
	}

	failed, err := store.List(ctx, BuildListOptions(WithStatuses(StatusFailed, "bogus")))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "j2" {
		t.Fatalf("unexpected failed list: %+v", failed)
	}

	xrp, err := store.List(ctx, BuildListOptions(WithKinds(attestation.KindXRPTx)))
	if err != nil {
		t.Fatalf("list by kind: %v", err)
	}
	if len(xrp) != 1 || xrp[0].Result == nil || !xrp[0].Result.Verified {
		t.Fatalf("unexpected kind list: %+v", xrp)
	}

	withResult, err := store.List(ctx, BuildListOptions(WithResultPresence(false)))
	if err != nil {
		t.Fatalf("list without result: %v", err)
	}
	if len(withResult) != 2 {
		t.Fatalf("expected 2 jobs without result, got %d", len(withResult))
	}

	recent, err := store.List(ctx, BuildListOptions(WithUpdatedSince(base.Add(15*time.Second))))
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 jobs to match since filter, got %d", len(recent))
	}

	query, err := store.List(ctx, BuildListOptions(WithQuery("boom")))
	if err != nil {
		t.Fatalf("list query: %v", err)
	}
	if len(query) != 1 || query[0].ID != "j2" {
		t.Fatalf("unexpected query list: %+v", query)
	}
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Create(ctx, newJob(id, attestation.KindBTCHoldings)); err != nil {
			t.Fatalf("create job %s: %v", id, err)
		}
	}
	if err := store.MarkFailed(ctx, "b", CodeJobProcessing, "boom", true); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "c", ProofResult{System: "mock"}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	base := time.Now().Add(-3 * time.Minute)
	store.mu.Lock()
	store.jobs["a"].UpdatedAt = base.Unix()
	store.jobs["b"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.jobs["c"].UpdatedAt = base.Add(2 * time.Minute).Unix()
	store.mu.Unlock()

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 1 || stats.Failed != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.NewestUpdatedAt != base.Add(2*time.Minute).Unix() || stats.OldestUpdatedAt != base.Unix() {
		t.Fatalf("unexpected time range: %+v", stats)
	}

	empty, err := store.Stats(ctx, BuildListOptions(WithKinds(attestation.KindDogeTx)))
	if err != nil {
		t.Fatalf("stats by kind: %v", err)
	}
	if empty != (JobStats{}) {
		t.Fatalf("expected empty stats, got %+v", empty)
	}
}

func TestMemoryStoreClaimLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	job := newJob("claim", attestation.KindCollateral)
	job.MaxRetries = 2
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, newJob("claim", attestation.KindCollateral)); !IsJobError(err, CodeJobConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	claimed, err := store.Claim(ctx, "claim")
	if err != nil || claimed.Status != StatusRunning || claimed.Attempts != 1 {
		t.Fatalf("unexpected claim: %+v %v", claimed, err)
	}
	if _, err := store.Claim(ctx, "claim"); !IsJobError(err, CodeJobConflict) {
		t.Fatalf("expected conflict while running, got %v", err)
	}

	if err := store.MarkFailed(ctx, "claim", CodeJobProcessing, "transient", false); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	retried, err := store.Claim(ctx, "claim")
	if err != nil || retried.Attempts != 2 {
		t.Fatalf("unexpected retry claim: %+v %v", retried, err)
	}
	if err := store.MarkFailed(ctx, "claim", CodeJobProcessing, "transient", false); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if _, err := store.Claim(ctx, "claim"); !IsJobError(err, CodeJobExhausted) {
		t.Fatalf("expected exhausted, got %v", err)
	}

	if _, err := store.Claim(ctx, "missing"); !IsJobError(err, CodeJobNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, newJob("copy", attestation.KindCollateral)); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, _ := store.Get(ctx, "copy")
	got.PublicValues[0] = 0xff
	again, _ := store.Get(ctx, "copy")
	if again.PublicValues[0] != 1 {
		t.Fatalf("store leaked internal state")
	}
}
