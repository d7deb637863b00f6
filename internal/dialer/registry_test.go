package dialer

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry()
	campaignID := uuid.New()

	r.Add(&ActiveCall{CallHandle: "h1", CampaignID: campaignID})
	r.Add(&ActiveCall{CallHandle: "h2", CampaignID: campaignID})

	if got := r.Count(); got != 2 {
		t.Fatalf("expected 2 active calls, got %d", got)
	}
	if got := r.CountForCampaign(campaignID); got != 2 {
		t.Fatalf("expected 2 calls for campaign, got %d", got)
	}

	call, ok := r.Remove("h1")
	if !ok || call.CallHandle != "h1" {
		t.Fatalf("expected to remove h1, got %v ok=%v", call, ok)
	}
	if got := r.CountForCampaign(campaignID); got != 1 {
		t.Fatalf("expected 1 call after removal, got %d", got)
	}
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Add(&ActiveCall{CallHandle: "h1", CampaignID: uuid.New()})

	if _, ok := r.Remove("h1"); !ok {
		t.Fatalf("first remove should succeed")
	}
	if _, ok := r.Remove("h1"); ok {
		t.Fatalf("second remove should be a no-op")
	}
	if got := r.Count(); got != 0 {
		t.Fatalf("expected empty registry, got %d", got)
	}
}

func TestRegistryDuplicateAddIgnored(t *testing.T) {
	r := NewRegistry()
	campaignID := uuid.New()

	r.Add(&ActiveCall{CallHandle: "h1", CampaignID: campaignID})
	r.Add(&ActiveCall{CallHandle: "h1", CampaignID: campaignID})

	if got := r.CountForCampaign(campaignID); got != 1 {
		t.Fatalf("duplicate handle must not inflate the count, got %d", got)
	}
}

func TestRegistryMarkAnswered(t *testing.T) {
	r := NewRegistry()
	r.Add(&ActiveCall{CallHandle: "h1", CampaignID: uuid.New()})

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	call, ok := r.MarkAnswered("h1", at)
	if !ok {
		t.Fatalf("expected handle to be tracked")
	}
	if !call.Answered || !call.AnsweredAt.Equal(at) {
		t.Fatalf("expected answered flag and timestamp, got %+v", call)
	}

	if _, ok := r.MarkAnswered("missing", at); ok {
		t.Fatalf("unknown handle must not be marked")
	}
	if _, ok := r.MarkAnswered("h1", at.Add(time.Second)); ok {
		t.Fatalf("already answered call must not be marked again")
	}
	if !call.AnsweredAt.Equal(at) {
		t.Fatalf("duplicate mark must not move the answer time, got %v", call.AnsweredAt)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	campaignID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			handle := fmt.Sprintf("h%d", n)
			r.Add(&ActiveCall{CallHandle: handle, CampaignID: campaignID})
			if n%2 == 0 {
				r.Remove(handle)
			}
		}(i)
	}
	wg.Wait()

	if got := r.Count(); got != 25 {
		t.Fatalf("expected 25 remaining calls, got %d", got)
	}
	if got := r.CountForCampaign(campaignID); got != 25 {
		t.Fatalf("expected campaign count 25, got %d", got)
	}
}
