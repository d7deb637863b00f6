package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acme/campaign-dialer/internal/domain"
	"github.com/acme/campaign-dialer/internal/repository"
	apperrors "github.com/acme/campaign-dialer/pkg/errors"
)

type memCampaignRepo struct {
	campaigns map[uuid.UUID]*domain.Campaign
	updates   int
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{campaigns: make(map[uuid.UUID]*domain.Campaign)}
}

func (m *memCampaignRepo) Create(ctx context.Context, campaign *domain.Campaign) error {
	m.campaigns[campaign.ID] = campaign
	return nil
}

func (m *memCampaignRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *memCampaignRepo) Update(ctx context.Context, campaign *domain.Campaign) error {
	m.campaigns[campaign.ID] = campaign
	m.updates++
	return nil
}

func (m *memCampaignRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	c, ok := m.campaigns[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *memCampaignRepo) List(ctx context.Context, afterID *uuid.UUID, limit int) ([]*domain.Campaign, error) {
	var out []*domain.Campaign
	for _, c := range m.campaigns {
		out = append(out, c)
	}
	return out, nil
}

func (m *memCampaignRepo) ListByStatuses(ctx context.Context, statuses []domain.CampaignStatus, limit int) ([]*domain.Campaign, error) {
	return nil, nil
}

type memScheduleRepo struct {
	windows map[uuid.UUID][]domain.ScheduleWindow
}

func (m *memScheduleRepo) Replace(ctx context.Context, campaignID uuid.UUID, windows []domain.ScheduleWindow) error {
	if m.windows == nil {
		m.windows = make(map[uuid.UUID][]domain.ScheduleWindow)
	}
	m.windows[campaignID] = windows
	return nil
}

func (m *memScheduleRepo) List(ctx context.Context, campaignID uuid.UUID) ([]domain.ScheduleWindow, error) {
	return m.windows[campaignID], nil
}

type memContactRepo struct {
	contacts []*domain.Contact
}

func (m *memContactRepo) BulkInsert(ctx context.Context, contacts []*domain.Contact) error {
	m.contacts = append(m.contacts, contacts...)
	return nil
}

func (m *memContactRepo) NextEligible(ctx context.Context, campaignID uuid.UUID, now time.Time, limit int) ([]*domain.Contact, error) {
	return nil, nil
}

func (m *memContactRepo) MarkDialing(ctx context.Context, contactID uuid.UUID, at time.Time) (*domain.Contact, error) {
	return nil, repository.ErrNotFound
}

func (m *memContactRepo) SetStatus(ctx context.Context, contactID uuid.UUID, status domain.ContactStatus) error {
	return nil
}

func (m *memContactRepo) ApplyOutcome(ctx context.Context, contactID uuid.UUID, status domain.ContactStatus, nextAttemptAt *time.Time) error {
	return nil
}

func (m *memContactRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID, status domain.ContactStatus, limit int) ([]*domain.Contact, error) {
	return m.contacts, nil
}

type memStatsRepo struct {
	ensured map[uuid.UUID]bool
	total   int64
}

func (m *memStatsRepo) Ensure(ctx context.Context, campaignID uuid.UUID) error {
	if m.ensured == nil {
		m.ensured = make(map[uuid.UUID]bool)
	}
	m.ensured[campaignID] = true
	return nil
}

func (m *memStatsRepo) Get(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignStats, error) {
	return &domain.CampaignStats{TotalContacts: m.total}, nil
}

func (m *memStatsRepo) ApplyDelta(ctx context.Context, campaignID uuid.UUID, delta repository.StatsDelta) error {
	m.total += delta.TotalContactsDelta
	return nil
}

type memRecordStore struct{}

func (memRecordStore) Create(ctx context.Context, record *domain.CallRecord) error    { return nil }
func (memRecordStore) SetHandle(ctx context.Context, record *domain.CallRecord) error { return nil }
func (memRecordStore) MarkAnswered(ctx context.Context, record *domain.CallRecord, at time.Time) error {
	return nil
}
func (memRecordStore) Finalize(ctx context.Context, record *domain.CallRecord) error { return nil }
func (memRecordStore) ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int, pagingState []byte) ([]domain.CallRecord, []byte, error) {
	return nil, nil, nil
}

type serviceFixture struct {
	service   *Service
	campaigns *memCampaignRepo
	schedules *memScheduleRepo
	contacts  *memContactRepo
	stats     *memStatsRepo
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		campaigns: newMemCampaignRepo(),
		schedules: &memScheduleRepo{},
		contacts:  &memContactRepo{},
		stats:     &memStatsRepo{},
	}
	f.service = NewService(f.campaigns, f.schedules, f.contacts, f.stats, memRecordStore{})
	return f
}

func validIVRInput() CreateCampaignInput {
	return CreateCampaignInput{
		Name: "renewal reminders",
		Type: domain.CampaignTypeIVR,
		Settings: domain.CampaignSettings{
			AudioFilePath:     "/audio/renewal.wav",
			SimultaneousCalls: 5,
		},
		Schedules: []domain.ScheduleWindow{
			{DayOfWeek: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60, Timezone: "UTC", Enabled: true},
		},
	}
}

func TestValidateCreateInputFailures(t *testing.T) {
	badWindow := validIVRInput()
	badWindow.Schedules = []domain.ScheduleWindow{
		{DayOfWeek: time.Monday, StartMinute: 17 * 60, EndMinute: 9 * 60},
	}

	badTimezone := validIVRInput()
	badTimezone.Schedules = []domain.ScheduleWindow{
		{DayOfWeek: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60, Timezone: "Not/AZone"},
	}

	cases := []CreateCampaignInput{
		{Name: "", Type: domain.CampaignTypeIVR, Settings: domain.CampaignSettings{AudioFilePath: "/a.wav"}},
		{Name: "x", Type: "broadcast"},
		{Name: "x", Type: domain.CampaignTypeIVR},
		{Name: "x", Type: domain.CampaignTypeAgent},
		{Name: "x", Type: domain.CampaignTypeHybrid, Settings: domain.CampaignSettings{AudioFilePath: "/a.wav"}},
		badWindow,
		badTimezone,
	}

	for _, tc := range cases {
		err := validateCreateInput(tc)
		if err == nil {
			t.Errorf("expected validation error for input %+v", tc)
			continue
		}
		if !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	}
}

func TestValidateCreateInputSuccess(t *testing.T) {
	if err := validateCreateInput(validIVRInput()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	agent := validIVRInput()
	agent.Type = domain.CampaignTypeAgent
	agent.Settings = domain.CampaignSettings{QueueID: "sales"}
	if err := validateCreateInput(agent); err != nil {
		t.Fatalf("unexpected error for agent campaign: %v", err)
	}
}

func TestNormalizeSettingsDefaults(t *testing.T) {
	settings := normalizeSettings(domain.CampaignSettings{})
	if settings.MaxAttempts != 3 {
		t.Fatalf("expected default 3 attempts, got %d", settings.MaxAttempts)
	}
	if settings.RetryInterval != 15*time.Minute {
		t.Fatalf("expected default 15m retry interval, got %v", settings.RetryInterval)
	}

	settings = normalizeSettings(domain.CampaignSettings{MaxAttempts: 5, RetryInterval: time.Hour})
	if settings.MaxAttempts != 5 || settings.RetryInterval != time.Hour {
		t.Fatalf("explicit settings must be preserved, got %+v", settings)
	}
}

func TestCreateCampaign(t *testing.T) {
	f := newServiceFixture()
	input := validIVRInput()
	input.Contacts = []ContactInput{
		{PhoneNumber: "+15550000001", Name: "Ana"},
		{PhoneNumber: "+15550000002"},
	}

	campaign, err := f.service.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if campaign.Status != domain.CampaignStatusDraft {
		t.Fatalf("new campaigns must start as drafts, got %s", campaign.Status)
	}
	if len(f.schedules.windows[campaign.ID]) != 1 {
		t.Fatalf("expected stored schedule windows")
	}
	if !f.stats.ensured[campaign.ID] {
		t.Fatalf("expected stats row to be ensured")
	}
	if len(f.contacts.contacts) != 2 {
		t.Fatalf("expected 2 contacts inserted, got %d", len(f.contacts.contacts))
	}
	if f.stats.total != 2 {
		t.Fatalf("expected total contacts counter 2, got %d", f.stats.total)
	}
	for _, c := range f.contacts.contacts {
		if c.Status != domain.ContactStatusPending {
			t.Fatalf("contacts must be created pending, got %s", c.Status)
		}
	}
}

func TestStartTransitions(t *testing.T) {
	f := newServiceFixture()
	campaign, err := f.service.Create(context.Background(), validIVRInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := f.service.Start(context.Background(), campaign.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	stored := f.campaigns.campaigns[campaign.ID]
	if stored.Status != domain.CampaignStatusRunning {
		t.Fatalf("expected running, got %s", stored.Status)
	}
	if stored.StartedAt == nil {
		t.Fatalf("expected StartedAt to be stamped")
	}

	// Starting an already running campaign is a no-op.
	if err := f.service.Start(context.Background(), campaign.ID); err != nil {
		t.Fatalf("restart should be a no-op, got %v", err)
	}

	if err := f.service.Stop(context.Background(), campaign.ID); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	err = f.service.Start(context.Background(), campaign.ID)
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("starting a stopped campaign must conflict, got %v", err)
	}
}

func TestResumeRequiresPaused(t *testing.T) {
	f := newServiceFixture()
	campaign, err := f.service.Create(context.Background(), validIVRInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err = f.service.Resume(context.Background(), campaign.ID)
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("resuming a draft must conflict, got %v", err)
	}

	if err := f.service.Start(context.Background(), campaign.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := f.service.Pause(context.Background(), campaign.ID); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if err := f.service.Resume(context.Background(), campaign.ID); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if got := f.campaigns.campaigns[campaign.ID].Status; got != domain.CampaignStatusRunning {
		t.Fatalf("expected running after resume, got %s", got)
	}
}

func TestScheduleRequiresDraftOrPaused(t *testing.T) {
	f := newServiceFixture()
	campaign, err := f.service.Create(context.Background(), validIVRInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := f.service.Schedule(context.Background(), campaign.ID); err != nil {
		t.Fatalf("scheduling a draft failed: %v", err)
	}
	if got := f.campaigns.campaigns[campaign.ID].Status; got != domain.CampaignStatusScheduled {
		t.Fatalf("expected scheduled, got %s", got)
	}

	err = f.service.Schedule(context.Background(), campaign.ID)
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("scheduling twice must conflict, got %v", err)
	}
}

func TestAddContactsValidation(t *testing.T) {
	f := newServiceFixture()
	campaign, err := f.service.Create(context.Background(), validIVRInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err = f.service.AddContacts(context.Background(), campaign.ID, []ContactInput{{PhoneNumber: ""}})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.contacts.contacts) != 0 {
		t.Fatalf("invalid batch must not insert anything")
	}
}
