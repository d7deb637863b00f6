package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acme/campaign-dialer/internal/domain"
	"github.com/acme/campaign-dialer/internal/repository"
	apperrors "github.com/acme/campaign-dialer/pkg/errors"
)

// Service orchestrates campaign lifecycle operations. The dialer never calls
// into this service; it only observes the statuses set here.
type Service struct {
	repo      repository.CampaignRepository
	schedules repository.ScheduleRepository
	contacts  repository.ContactRepository
	stats     repository.CampaignStatisticsRepository
	records   repository.CallRecordStore
}

// NewService constructs a campaign service.
func NewService(
	repo repository.CampaignRepository,
	schedules repository.ScheduleRepository,
	contacts repository.ContactRepository,
	stats repository.CampaignStatisticsRepository,
	records repository.CallRecordStore,
) *Service {
	return &Service{
		repo:      repo,
		schedules: schedules,
		contacts:  contacts,
		stats:     stats,
		records:   records,
	}
}

// CreateCampaignInput captures campaign creation parameters.
type CreateCampaignInput struct {
	Name        string
	Description string
	Type        domain.CampaignType
	Settings    domain.CampaignSettings
	Schedules   []domain.ScheduleWindow
	Contacts    []ContactInput
}

// ContactInput expresses one contact to dial.
type ContactInput struct {
	PhoneNumber string
	Name        string
	CustomData  map[string]any
}

// UpdateCampaignInput captures updatable properties. The campaign type is
// immutable after creation.
type UpdateCampaignInput struct {
	ID          uuid.UUID
	Name        *string
	Description *string
	Settings    *domain.CampaignSettings
	Schedules   *[]domain.ScheduleWindow
}

// Create provisions a new campaign in draft state.
func (s *Service) Create(ctx context.Context, input CreateCampaignInput) (*domain.Campaign, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	campaign := &domain.Campaign{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		Type:        input.Type,
		Status:      domain.CampaignStatusDraft,
		Settings:    normalizeSettings(input.Settings),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("campaign service: create campaign: %w", err)
	}

	if err := s.schedules.Replace(ctx, campaign.ID, input.Schedules); err != nil {
		return nil, fmt.Errorf("campaign service: store schedules: %w", err)
	}
	campaign.Schedules = input.Schedules

	if err := s.stats.Ensure(ctx, campaign.ID); err != nil {
		return nil, fmt.Errorf("campaign service: ensure stats: %w", err)
	}

	if len(input.Contacts) > 0 {
		if err := s.AddContacts(ctx, campaign.ID, input.Contacts); err != nil {
			return nil, err
		}
	}

	return campaign, nil
}

// Get retrieves a campaign by id including its schedules.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	campaign, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	windows, err := s.schedules.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("campaign service: list schedules: %w", err)
	}
	campaign.Schedules = windows
	return campaign, nil
}

// List returns campaigns.
func (s *Service) List(ctx context.Context, afterID *uuid.UUID, limit int) ([]*domain.Campaign, error) {
	return s.repo.List(ctx, afterID, limit)
}

// Update modifies campaign metadata, settings and schedules.
func (s *Service) Update(ctx context.Context, input UpdateCampaignInput) (*domain.Campaign, error) {
	campaign, err := s.repo.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		campaign.Name = *input.Name
	}
	if input.Description != nil {
		campaign.Description = *input.Description
	}
	if input.Settings != nil {
		campaign.Settings = normalizeSettings(*input.Settings)
	}

	campaign.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, campaign); err != nil {
		return nil, err
	}

	if input.Schedules != nil {
		if err := s.schedules.Replace(ctx, campaign.ID, *input.Schedules); err != nil {
			return nil, fmt.Errorf("campaign service: update schedules: %w", err)
		}
		campaign.Schedules = *input.Schedules
	}

	return campaign, nil
}

// Start transitions a campaign into the running state.
func (s *Service) Start(ctx context.Context, id uuid.UUID) error {
	campaign, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	switch campaign.Status {
	case domain.CampaignStatusRunning:
		return nil
	case domain.CampaignStatusCompleted, domain.CampaignStatusStopped:
		return fmt.Errorf("%w: cannot start a %s campaign", apperrors.ErrConflict, campaign.Status)
	}

	now := time.Now().UTC()
	campaign.Status = domain.CampaignStatusRunning
	campaign.UpdatedAt = now
	if campaign.StartedAt == nil {
		campaign.StartedAt = &now
	}
	return s.repo.Update(ctx, campaign)
}

// Schedule marks a draft campaign as scheduled; the dialer will pick it up
// once a calling window opens.
func (s *Service) Schedule(ctx context.Context, id uuid.UUID) error {
	campaign, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status != domain.CampaignStatusDraft && campaign.Status != domain.CampaignStatusPaused {
		return fmt.Errorf("%w: cannot schedule a %s campaign", apperrors.ErrConflict, campaign.Status)
	}
	return s.repo.UpdateStatus(ctx, id, domain.CampaignStatusScheduled)
}

// Pause stops selection of new contacts; in-flight calls run to completion.
func (s *Service) Pause(ctx context.Context, id uuid.UUID) error {
	return s.repo.UpdateStatus(ctx, id, domain.CampaignStatusPaused)
}

// Resume returns a paused campaign to the running state.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) error {
	campaign, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status != domain.CampaignStatusPaused {
		return fmt.Errorf("%w: cannot resume a %s campaign", apperrors.ErrConflict, campaign.Status)
	}
	return s.repo.UpdateStatus(ctx, id, domain.CampaignStatusRunning)
}

// Stop terminates a campaign permanently.
func (s *Service) Stop(ctx context.Context, id uuid.UUID) error {
	return s.repo.UpdateStatus(ctx, id, domain.CampaignStatusStopped)
}

// Complete marks a campaign as completed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) error {
	campaign, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	campaign.Status = domain.CampaignStatusCompleted
	campaign.CompletedAt = &now
	campaign.UpdatedAt = now
	return s.repo.Update(ctx, campaign)
}

// Stats retrieves aggregated statistics.
func (s *Service) Stats(ctx context.Context, id uuid.UUID) (*domain.CampaignStats, error) {
	return s.stats.Get(ctx, id)
}

// AddContacts appends pending contacts to a campaign.
func (s *Service) AddContacts(ctx context.Context, campaignID uuid.UUID, inputs []ContactInput) error {
	if len(inputs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	contacts := make([]*domain.Contact, 0, len(inputs))
	for _, in := range inputs {
		if in.PhoneNumber == "" {
			return fmt.Errorf("%w: contact phone number is required", apperrors.ErrValidation)
		}
		contacts = append(contacts, &domain.Contact{
			ID:          uuid.New(),
			CampaignID:  campaignID,
			PhoneNumber: in.PhoneNumber,
			Name:        in.Name,
			CustomData:  in.CustomData,
			Status:      domain.ContactStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	if err := s.contacts.BulkInsert(ctx, contacts); err != nil {
		return fmt.Errorf("campaign service: add contacts: %w", err)
	}

	if err := s.stats.ApplyDelta(ctx, campaignID, repository.StatsDelta{TotalContactsDelta: int64(len(contacts))}); err != nil {
		return fmt.Errorf("campaign service: update stats: %w", err)
	}
	return nil
}

// ListContacts lists contacts for a campaign, optionally by status.
func (s *Service) ListContacts(ctx context.Context, campaignID uuid.UUID, status domain.ContactStatus, limit int) ([]*domain.Contact, error) {
	return s.contacts.ListByCampaign(ctx, campaignID, status, limit)
}

// ListCallRecordsResult pages through call records.
type ListCallRecordsResult struct {
	Records     []domain.CallRecord
	PagingState []byte
}

// ListCallRecords lists call records with a paging token.
func (s *Service) ListCallRecords(ctx context.Context, campaignID uuid.UUID, limit int, pagingState []byte) (*ListCallRecordsResult, error) {
	records, next, err := s.records.ListByCampaign(ctx, campaignID, limit, pagingState)
	if err != nil {
		return nil, err
	}
	return &ListCallRecordsResult{Records: records, PagingState: next}, nil
}

func normalizeSettings(settings domain.CampaignSettings) domain.CampaignSettings {
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = 3
	}
	if settings.RetryInterval < time.Minute {
		settings.RetryInterval = 15 * time.Minute
	}
	if settings.SimultaneousCalls < 0 {
		settings.SimultaneousCalls = 0
	}
	return settings
}

func validateCreateInput(input CreateCampaignInput) error {
	if input.Name == "" {
		return fmt.Errorf("%w: campaign name is required", apperrors.ErrValidation)
	}

	switch input.Type {
	case domain.CampaignTypeIVR:
		if input.Settings.AudioFilePath == "" {
			return fmt.Errorf("%w: ivr campaigns require an audio file path", apperrors.ErrValidation)
		}
	case domain.CampaignTypeAgent:
		if input.Settings.QueueID == "" {
			return fmt.Errorf("%w: agent campaigns require a queue id", apperrors.ErrValidation)
		}
	case domain.CampaignTypeHybrid:
		if input.Settings.AudioFilePath == "" || input.Settings.QueueID == "" {
			return fmt.Errorf("%w: hybrid campaigns require an audio file path and a queue id", apperrors.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown campaign type %q", apperrors.ErrValidation, input.Type)
	}

	for _, w := range input.Schedules {
		if w.DayOfWeek < time.Sunday || w.DayOfWeek > time.Saturday {
			return fmt.Errorf("%w: schedule day of week out of range", apperrors.ErrValidation)
		}
		if w.StartMinute < 0 || w.EndMinute >= 24*60 || w.EndMinute < w.StartMinute {
			return fmt.Errorf("%w: schedule window bounds invalid", apperrors.ErrValidation)
		}
		if w.Timezone != "" {
			if _, err := time.LoadLocation(w.Timezone); err != nil {
				return fmt.Errorf("%w: invalid schedule timezone %s: %v", apperrors.ErrValidation, w.Timezone, err)
			}
		}
	}
	return nil
}
