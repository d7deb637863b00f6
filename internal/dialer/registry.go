package dialer

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acme/campaign-dialer/internal/domain"
)

// ActiveCall is one in-flight call attempt tracked by the registry. Campaign
// settings are snapshotted at initiation so outcome handling is unaffected
// by concurrent campaign edits.
type ActiveCall struct {
	CallHandle    string
	CampaignID    uuid.UUID
	ContactID     uuid.UUID
	PhoneNumber   string
	Attempt       int
	MaxAttempts   int
	RetryInterval time.Duration
	Record        *domain.CallRecord
	Answered      bool
	AnsweredAt    time.Time
	StartedAt     time.Time
}

// Registry is the shared map from call handle to in-flight attempt. It is
// written by the initiator during a tick and by outcome workers at arbitrary
// times, so all access goes through the mutex.
type Registry struct {
	mu     sync.Mutex
	calls  map[string]*ActiveCall
	counts map[uuid.UUID]int
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		calls:  make(map[string]*ActiveCall),
		counts: make(map[uuid.UUID]int),
	}
}

// Add inserts an in-flight call keyed by its handle.
func (r *Registry) Add(call *ActiveCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.calls[call.CallHandle]; exists {
		return
	}
	r.calls[call.CallHandle] = call
	r.counts[call.CampaignID]++
}

// Remove deletes and returns the call for the handle. The second return is
// false if the handle is unknown, which makes duplicate terminal events a
// natural no-op.
func (r *Registry) Remove(handle string) (*ActiveCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.calls[handle]
	if !ok {
		return nil, false
	}
	delete(r.calls, handle)
	if r.counts[call.CampaignID] <= 1 {
		delete(r.counts, call.CampaignID)
	} else {
		r.counts[call.CampaignID]--
	}
	return call, true
}

// MarkAnswered flags the call as answered and returns it. The second return
// is false when the handle is unknown or the call was already answered, so a
// redelivered answered event is a natural no-op.
func (r *Registry) MarkAnswered(handle string, at time.Time) (*ActiveCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call, ok := r.calls[handle]
	if !ok || call.Answered {
		return nil, false
	}
	call.Answered = true
	call.AnsweredAt = at
	return call, true
}

// Count returns the total number of in-flight calls.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// CountForCampaign returns the number of in-flight calls for one campaign.
func (r *Registry) CountForCampaign(campaignID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[campaignID]
}
