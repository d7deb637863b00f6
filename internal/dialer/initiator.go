package dialer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/campaign-dialer/internal/domain"
	"github.com/acme/campaign-dialer/internal/repository"
	"github.com/acme/campaign-dialer/internal/telephony"
)

// initiate starts one call attempt for the contact: transition it to
// calling, write the placeholder call record, then dispatch by campaign
// type. A dispatch failure takes the outcome failure path synchronously and
// never inserts the handle into the registry.
func (e *Engine) initiate(ctx context.Context, campaign *domain.Campaign, contact *domain.Contact) error {
	now := e.now()

	updated, err := e.deps.Contacts.MarkDialing(ctx, contact.ID, now)
	if err != nil {
		return fmt.Errorf("mark dialing: %w", err)
	}

	record := &domain.CallRecord{
		ID:         uuid.New(),
		CampaignID: campaign.ID,
		ContactID:  contact.ID,
		Outcome:    domain.CallOutcomeFailed, // placeholder until finalized
		CreatedAt:  now,
	}

	call := &ActiveCall{
		CampaignID:    campaign.ID,
		ContactID:     contact.ID,
		PhoneNumber:   contact.PhoneNumber,
		Attempt:       updated.Attempts,
		MaxAttempts:   campaign.Settings.MaxAttempts,
		RetryInterval: campaign.Settings.RetryInterval,
		Record:        record,
		StartedAt:     now,
	}

	// The attempt is counted once dialing starts, whether or not the record
	// write succeeds, so failure-path outcome counters always have a
	// matching started attempt.
	e.applyStats(ctx, campaign.ID, repository.StatsDelta{AttemptsStartedDelta: 1})

	if err := e.deps.Records.Create(ctx, record); err != nil {
		e.failAttempt(ctx, call, fmt.Sprintf("create call record: %v", err))
		return fmt.Errorf("create call record: %w", err)
	}

	octx, cancel := context.WithTimeout(ctx, e.originateTimeout)
	handle, err := e.deps.Provider.Originate(octx, buildOriginateRequest(campaign, contact))
	cancel()
	if err != nil {
		e.failAttempt(ctx, call, fmt.Sprintf("originate: %v", err))
		return nil
	}

	record.CallHandle = handle
	call.CallHandle = handle
	if err := e.deps.Records.SetHandle(ctx, record); err != nil {
		e.deps.Logger.Warn("dialer: record handle", zap.Error(err), zap.String("call_handle", handle))
	}

	e.registry.Add(call)
	if e.deps.Live != nil {
		if err := e.deps.Live.Incr(ctx, campaign.ID); err != nil {
			e.deps.Logger.Warn("dialer: live count incr", zap.Error(err))
		}
	}

	e.deps.Logger.Info("dialer: call originated",
		zap.String("campaign_id", campaign.ID.String()),
		zap.String("contact_id", contact.ID.String()),
		zap.String("call_handle", handle),
		zap.Int("attempt", call.Attempt))

	return nil
}

func buildOriginateRequest(campaign *domain.Campaign, contact *domain.Contact) telephony.OriginateRequest {
	req := telephony.OriginateRequest{
		CampaignType:   campaign.Type,
		PhoneNumber:    contact.PhoneNumber,
		CallerIDNumber: campaign.Settings.CallerIDNumber,
		CallerIDName:   campaign.Settings.CallerIDName,
		MaxDuration:    campaign.Settings.MaxCallDuration,
	}

	switch campaign.Type {
	case domain.CampaignTypeIVR:
		req.AudioFilePath = campaign.Settings.AudioFilePath
	case domain.CampaignTypeAgent:
		req.QueueID = campaign.Settings.QueueID
	case domain.CampaignTypeHybrid:
		req.AudioFilePath = campaign.Settings.AudioFilePath
		req.QueueID = campaign.Settings.QueueID
		req.DTMFOptions = campaign.Settings.DTMFOptions
	}

	return req
}
