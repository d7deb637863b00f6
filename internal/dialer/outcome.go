package dialer

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/campaign-dialer/internal/domain"
	"github.com/acme/campaign-dialer/internal/queue"
	"github.com/acme/campaign-dialer/internal/repository"
	"github.com/acme/campaign-dialer/internal/telephony"
)

// classifyCause maps a backend hangup cause to a call outcome.
func classifyCause(cause string) domain.CallOutcome {
	switch strings.ToUpper(strings.TrimSpace(cause)) {
	case telephony.CauseNormalClearing, telephony.CauseAnswered:
		return domain.CallOutcomeAnswered
	case telephony.CauseUserBusy, telephony.CauseBusy:
		return domain.CallOutcomeBusy
	case telephony.CauseNoAnswer, telephony.CauseNoAnswerAlt:
		return domain.CallOutcomeNoAnswer
	default:
		return domain.CallOutcomeFailed
	}
}

func contactStatusFor(outcome domain.CallOutcome) domain.ContactStatus {
	switch outcome {
	case domain.CallOutcomeBusy:
		return domain.ContactStatusBusy
	case domain.CallOutcomeNoAnswer:
		return domain.ContactStatusNoAnswer
	default:
		return domain.ContactStatusFailed
	}
}

// handleEvent reacts to one call lifecycle event. Events for unknown
// handles are ignored: the call may already be reconciled, or belong to
// another subsystem.
func (e *Engine) handleEvent(ctx context.Context, ev telephony.Event) {
	tracer := otel.Tracer("dialer.outcome")
	sctx, span := tracer.Start(ctx, "dialer.event", trace.WithAttributes(
		attribute.String("call.handle", ev.CallHandle),
		attribute.String("event.kind", string(ev.Kind)),
		attribute.String("event.cause", ev.Cause),
	))
	defer span.End()

	switch ev.Kind {
	case telephony.EventAnswered:
		e.handleAnswered(sctx, ev)
	case telephony.EventHangup:
		e.handleHangup(sctx, ev)
	default:
		e.deps.Logger.Warn("dialer: unknown event kind", zap.String("kind", string(ev.Kind)))
	}
}

func (e *Engine) handleAnswered(ctx context.Context, ev telephony.Event) {
	at := ev.OccurredAt
	if at.IsZero() {
		at = e.now()
	}

	call, ok := e.registry.MarkAnswered(ev.CallHandle, at)
	if !ok {
		// Unknown handle or already answered; either way nothing to do.
		e.deps.Logger.Debug("dialer: answered event ignored", zap.String("call_handle", ev.CallHandle))
		return
	}

	if err := e.deps.Contacts.SetStatus(ctx, call.ContactID, domain.ContactStatusAnswered); err != nil {
		e.deps.Logger.Error("dialer: set contact answered", zap.Error(err), zap.String("contact_id", call.ContactID.String()))
	}
	if err := e.deps.Records.MarkAnswered(ctx, call.Record, at); err != nil {
		e.deps.Logger.Error("dialer: mark record answered", zap.Error(err), zap.String("call_handle", ev.CallHandle))
	}
	t := at
	call.Record.AnsweredAt = &t

	e.applyStats(ctx, call.CampaignID, repository.StatsDelta{AnsweredCallsDelta: 1})
}

func (e *Engine) handleHangup(ctx context.Context, ev telephony.Event) {
	call, ok := e.registry.Remove(ev.CallHandle)
	if !ok {
		e.deps.Logger.Debug("dialer: hangup for unknown handle", zap.String("call_handle", ev.CallHandle))
		return
	}
	if e.deps.Live != nil {
		if err := e.deps.Live.Decr(ctx, call.CampaignID); err != nil {
			e.deps.Logger.Warn("dialer: live count decr", zap.Error(err))
		}
	}

	endedAt := ev.OccurredAt
	if endedAt.IsZero() {
		endedAt = e.now()
	}

	outcome := classifyCause(ev.Cause)
	if call.Answered || outcome == domain.CallOutcomeAnswered {
		e.finishAttempt(ctx, call, domain.CallOutcomeAnswered, ev.Duration, endedAt, ev.Cause)
		return
	}
	e.finishAttempt(ctx, call, outcome, ev.Duration, endedAt, ev.Cause)
}

// failAttempt handles a dispatch failure synchronously: the attempt was
// never registered, so it goes straight through the failure path.
func (e *Engine) failAttempt(ctx context.Context, call *ActiveCall, reason string) {
	e.finishAttempt(ctx, call, domain.CallOutcomeFailed, 0, e.now(), reason)
}

// finishAttempt finalizes the call record exactly once, transitions the
// contact, updates statistics and publishes the outcome.
func (e *Engine) finishAttempt(ctx context.Context, call *ActiveCall, outcome domain.CallOutcome, duration time.Duration, endedAt time.Time, notes string) {
	log := e.deps.Logger

	record := call.Record
	record.Outcome = outcome
	record.Duration = duration
	record.EndedAt = &endedAt
	record.Notes = notes
	if record.AnsweredAt != nil {
		record.WaitTime = record.AnsweredAt.Sub(call.StartedAt)
	} else {
		record.WaitTime = endedAt.Sub(call.StartedAt)
	}
	if record.WaitTime < 0 {
		record.WaitTime = 0
	}

	var (
		status        domain.ContactStatus
		nextAttemptAt *time.Time
		delta         repository.StatsDelta
	)

	if outcome == domain.CallOutcomeAnswered {
		// Answered attempts end the contact's cycle regardless of remaining
		// attempt budget.
		status = domain.ContactStatusCompleted
		delta.CompletedContactsDelta = 1
	} else {
		status, nextAttemptAt = e.retryOrExhaust(call, outcome)
		switch outcome {
		case domain.CallOutcomeBusy:
			delta.BusyOutcomesDelta = 1
		case domain.CallOutcomeNoAnswer:
			delta.NoAnswerOutcomesDelta = 1
		}
		if nextAttemptAt != nil {
			delta.RetriesScheduledDelta = 1
		} else {
			delta.FailedContactsDelta = 1
		}
	}

	if err := e.deps.Records.Finalize(ctx, record); err != nil {
		log.Error("dialer: finalize call record", zap.Error(err), zap.String("record_id", record.ID.String()))
	}
	if err := e.deps.Contacts.ApplyOutcome(ctx, call.ContactID, status, nextAttemptAt); err != nil {
		log.Error("dialer: apply contact outcome", zap.Error(err), zap.String("contact_id", call.ContactID.String()))
	}
	e.applyStats(ctx, call.CampaignID, delta)
	e.publishStatus(ctx, call, status, nextAttemptAt, endedAt)

	log.Info("dialer: attempt finished",
		zap.String("campaign_id", call.CampaignID.String()),
		zap.String("contact_id", call.ContactID.String()),
		zap.String("outcome", string(outcome)),
		zap.String("contact_status", string(status)),
		zap.Int("attempt", call.Attempt))
}

// retryOrExhaust decides whether the contact gets another attempt. Exhausted
// contacts become terminally failed with no next attempt time.
func (e *Engine) retryOrExhaust(call *ActiveCall, outcome domain.CallOutcome) (domain.ContactStatus, *time.Time) {
	if call.Attempt >= call.MaxAttempts {
		return domain.ContactStatusFailed, nil
	}
	next := e.now().Add(call.RetryInterval)
	return contactStatusFor(outcome), &next
}

func (e *Engine) applyStats(ctx context.Context, campaignID uuid.UUID, delta repository.StatsDelta) {
	if e.deps.Stats == nil {
		return
	}
	if err := e.deps.Stats.ApplyDelta(ctx, campaignID, delta); err != nil {
		e.deps.Logger.Warn("dialer: apply stats delta", zap.Error(err), zap.String("campaign_id", campaignID.String()))
	}
}

func (e *Engine) publishStatus(ctx context.Context, call *ActiveCall, status domain.ContactStatus, nextAttemptAt *time.Time, endedAt time.Time) {
	if e.deps.Publisher == nil {
		return
	}
	msg := queue.CallStatusMessage{
		CallID:        call.Record.ID,
		CampaignID:    call.CampaignID,
		ContactID:     call.ContactID,
		PhoneNumber:   call.PhoneNumber,
		CallHandle:    call.CallHandle,
		Outcome:       string(call.Record.Outcome),
		ContactStatus: string(status),
		Attempt:       call.Attempt,
		MaxAttempts:   call.MaxAttempts,
		DurationMs:    int64(call.Record.Duration / time.Millisecond),
		NextAttemptAt: nextAttemptAt,
		Notes:         call.Record.Notes,
		OccurredAt:    endedAt,
	}
	if err := e.deps.Publisher.PublishStatus(ctx, msg); err != nil {
		e.deps.Logger.Warn("dialer: publish status", zap.Error(err), zap.String("call_handle", call.CallHandle))
	}
}
