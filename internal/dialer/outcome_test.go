package dialer

import (
	"testing"
	"time"

	"github.com/acme/campaign-dialer/internal/domain"
)

func TestClassifyCause(t *testing.T) {
	cases := []struct {
		cause string
		want  domain.CallOutcome
	}{
		{"NORMAL_CLEARING", domain.CallOutcomeAnswered},
		{"ANSWERED", domain.CallOutcomeAnswered},
		{"normal_clearing", domain.CallOutcomeAnswered},
		{"USER_BUSY", domain.CallOutcomeBusy},
		{"BUSY", domain.CallOutcomeBusy},
		{"NO_ANSWER", domain.CallOutcomeNoAnswer},
		{"NOANSWER", domain.CallOutcomeNoAnswer},
		{" no_answer ", domain.CallOutcomeNoAnswer},
		{"CALL_REJECTED", domain.CallOutcomeFailed},
		{"DESTINATION_OUT_OF_ORDER", domain.CallOutcomeFailed},
		{"", domain.CallOutcomeFailed},
	}

	for _, tc := range cases {
		if got := classifyCause(tc.cause); got != tc.want {
			t.Errorf("classifyCause(%q) = %s, want %s", tc.cause, got, tc.want)
		}
	}
}

func TestContactStatusFor(t *testing.T) {
	cases := []struct {
		outcome domain.CallOutcome
		want    domain.ContactStatus
	}{
		{domain.CallOutcomeBusy, domain.ContactStatusBusy},
		{domain.CallOutcomeNoAnswer, domain.ContactStatusNoAnswer},
		{domain.CallOutcomeFailed, domain.ContactStatusFailed},
		{domain.CallOutcomeRejected, domain.ContactStatusFailed},
	}

	for _, tc := range cases {
		if got := contactStatusFor(tc.outcome); got != tc.want {
			t.Errorf("contactStatusFor(%s) = %s, want %s", tc.outcome, got, tc.want)
		}
	}
}

func TestRetryOrExhaust(t *testing.T) {
	campaign := testCampaign(1, 3)
	f := newFixture(campaign)

	call := &ActiveCall{
		Attempt:       1,
		MaxAttempts:   3,
		RetryInterval: 20 * time.Minute,
	}

	status, next := f.engine.retryOrExhaust(call, domain.CallOutcomeBusy)
	if status != domain.ContactStatusBusy {
		t.Fatalf("expected busy status, got %s", status)
	}
	if next == nil || !next.Equal(f.now.Add(20*time.Minute)) {
		t.Fatalf("expected retry 20m out, got %v", next)
	}

	call.Attempt = 3
	status, next = f.engine.retryOrExhaust(call, domain.CallOutcomeBusy)
	if status != domain.ContactStatusFailed {
		t.Fatalf("exhausted attempt must fail terminally, got %s", status)
	}
	if next != nil {
		t.Fatalf("exhausted attempt must not schedule a retry, got %v", next)
	}
}
