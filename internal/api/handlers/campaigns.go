package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/campaign-dialer/internal/domain"
	campaignsvc "github.com/acme/campaign-dialer/internal/service/campaign"
	apperrors "github.com/acme/campaign-dialer/pkg/errors"
)

type createCampaignRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Type        string                  `json:"type"`
	Settings    settingsRequest         `json:"settings"`
	Schedules   []scheduleWindowRequest `json:"schedules"`
	Contacts    []contactRequest        `json:"contacts"`
}

type settingsRequest struct {
	MaxAttempts          int               `json:"max_attempts"`
	RetryIntervalMinutes int               `json:"retry_interval_minutes"`
	MaxCallDurationS     int               `json:"max_call_duration_s"`
	SimultaneousCalls    int               `json:"simultaneous_calls"`
	CallerIDNumber       string            `json:"caller_id_number"`
	CallerIDName         string            `json:"caller_id_name"`
	AudioFilePath        string            `json:"audio_file_path"`
	QueueID              string            `json:"queue_id"`
	DTMFOptions          map[string]string `json:"dtmf_options"`
}

type scheduleWindowRequest struct {
	DayOfWeek int    `json:"day_of_week"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Timezone  string `json:"timezone"`
	Enabled   *bool  `json:"enabled"`
}

type contactRequest struct {
	PhoneNumber string         `json:"phone_number"`
	Name        string         `json:"name"`
	CustomData  map[string]any `json:"custom_data"`
}

type campaignResponse struct {
	ID          uuid.UUID                `json:"id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Type        domain.CampaignType      `json:"type"`
	Status      domain.CampaignStatus    `json:"status"`
	Settings    settingsResponse         `json:"settings"`
	Schedules   []scheduleWindowResponse `json:"schedules"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
	StartedAt   *time.Time               `json:"started_at,omitempty"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
}

type settingsResponse struct {
	MaxAttempts          int               `json:"max_attempts"`
	RetryIntervalMinutes int               `json:"retry_interval_minutes"`
	MaxCallDurationS     int               `json:"max_call_duration_s"`
	SimultaneousCalls    int               `json:"simultaneous_calls"`
	CallerIDNumber       string            `json:"caller_id_number"`
	CallerIDName         string            `json:"caller_id_name"`
	AudioFilePath        string            `json:"audio_file_path,omitempty"`
	QueueID              string            `json:"queue_id,omitempty"`
	DTMFOptions          map[string]string `json:"dtmf_options,omitempty"`
}

type scheduleWindowResponse struct {
	DayOfWeek int    `json:"day_of_week"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Timezone  string `json:"timezone"`
	Enabled   bool   `json:"enabled"`
}

type campaignStatsResponse struct {
	TotalContacts     int64 `json:"total_contacts"`
	AttemptsStarted   int64 `json:"attempts_started"`
	AnsweredCalls     int64 `json:"answered_calls"`
	CompletedContacts int64 `json:"completed_contacts"`
	BusyOutcomes      int64 `json:"busy_outcomes"`
	NoAnswerOutcomes  int64 `json:"no_answer_outcomes"`
	FailedContacts    int64 `json:"failed_contacts"`
	RetriesScheduled  int64 `json:"retries_scheduled"`
	ActiveCalls       int64 `json:"active_calls"`
}

type listCampaignsResponse struct {
	Campaigns []campaignResponse `json:"campaigns"`
}

type contactResponse struct {
	ID            uuid.UUID            `json:"id"`
	PhoneNumber   string               `json:"phone_number"`
	Name          string               `json:"name,omitempty"`
	Status        domain.ContactStatus `json:"status"`
	Attempts      int                  `json:"attempts"`
	LastCallAt    *time.Time           `json:"last_call_at,omitempty"`
	NextAttemptAt *time.Time           `json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

type listContactsResponse struct {
	Contacts []contactResponse `json:"contacts"`
}

type callRecordResponse struct {
	ID         uuid.UUID          `json:"id"`
	ContactID  uuid.UUID          `json:"contact_id"`
	CallHandle string             `json:"call_handle,omitempty"`
	Outcome    domain.CallOutcome `json:"outcome"`
	DurationS  int                `json:"duration_s"`
	WaitTimeS  int                `json:"wait_time_s"`
	AnsweredAt *time.Time         `json:"answered_at,omitempty"`
	EndedAt    *time.Time         `json:"ended_at,omitempty"`
	Notes      string             `json:"notes,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

type listCallRecordsResponse struct {
	Calls    []callRecordResponse `json:"calls"`
	NextPage string               `json:"next_page_token,omitempty"`
}

func (h *HandlerSet) createCampaign(ctx *fiber.Ctx) error {
	var req createCampaignRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	input, err := toCreateCampaignInput(req)
	if err != nil {
		return translateError(err)
	}

	campaign, err := h.campaigns.Create(ctx.Context(), input)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(toCampaignResponse(campaign))
}

func (h *HandlerSet) listCampaigns(ctx *fiber.Ctx) error {
	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))
	var afterID *uuid.UUID
	if afterStr := ctx.Query("after_id"); afterStr != "" {
		if id, err := uuid.Parse(afterStr); err == nil {
			afterID = &id
		}
	}

	campaigns, err := h.campaigns.List(ctx.Context(), afterID, limit)
	if err != nil {
		return translateError(err)
	}

	resp := listCampaignsResponse{Campaigns: make([]campaignResponse, 0, len(campaigns))}
	for _, c := range campaigns {
		resp.Campaigns = append(resp.Campaigns, toCampaignResponse(c))
	}

	return ctx.Status(http.StatusOK).JSON(resp)
}

func (h *HandlerSet) getCampaign(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	campaign, err := h.campaigns.Get(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(toCampaignResponse(campaign))
}

type updateCampaignRequest struct {
	Name        *string                  `json:"name"`
	Description *string                  `json:"description"`
	Settings    *settingsRequest         `json:"settings"`
	Schedules   *[]scheduleWindowRequest `json:"schedules"`
}

func (h *HandlerSet) updateCampaign(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	var req updateCampaignRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	input := campaignsvc.UpdateCampaignInput{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Settings != nil {
		settings := toSettings(*req.Settings)
		input.Settings = &settings
	}
	if req.Schedules != nil {
		windows, err := parseScheduleWindows(*req.Schedules)
		if err != nil {
			return translateError(err)
		}
		input.Schedules = &windows
	}

	campaign, err := h.campaigns.Update(ctx.Context(), input)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(toCampaignResponse(campaign))
}

func (h *HandlerSet) startCampaign(ctx *fiber.Ctx) error {
	return h.transition(ctx, h.campaigns.Start)
}

func (h *HandlerSet) scheduleCampaign(ctx *fiber.Ctx) error {
	return h.transition(ctx, h.campaigns.Schedule)
}

func (h *HandlerSet) pauseCampaign(ctx *fiber.Ctx) error {
	return h.transition(ctx, h.campaigns.Pause)
}

func (h *HandlerSet) resumeCampaign(ctx *fiber.Ctx) error {
	return h.transition(ctx, h.campaigns.Resume)
}

func (h *HandlerSet) stopCampaign(ctx *fiber.Ctx) error {
	return h.transition(ctx, h.campaigns.Stop)
}

func (h *HandlerSet) completeCampaign(ctx *fiber.Ctx) error {
	return h.transition(ctx, h.campaigns.Complete)
}

func (h *HandlerSet) transition(ctx *fiber.Ctx, fn func(context.Context, uuid.UUID) error) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}
	if err := fn(ctx.Context(), id); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

func (h *HandlerSet) campaignStats(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	stats, err := h.campaigns.Stats(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	active, err := h.container.LiveCounts().Get(ctx.Context(), id)
	if err != nil {
		active = 0
	}

	resp := campaignStatsResponse{
		TotalContacts:     stats.TotalContacts,
		AttemptsStarted:   stats.AttemptsStarted,
		AnsweredCalls:     stats.AnsweredCalls,
		CompletedContacts: stats.CompletedContacts,
		BusyOutcomes:      stats.BusyOutcomes,
		NoAnswerOutcomes:  stats.NoAnswerOutcomes,
		FailedContacts:    stats.FailedContacts,
		RetriesScheduled:  stats.RetriesScheduled,
		ActiveCalls:       active,
	}

	return ctx.Status(http.StatusOK).JSON(resp)
}

func (h *HandlerSet) addContacts(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	var req struct {
		Contacts []contactRequest `json:"contacts"`
	}
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	contacts := make([]campaignsvc.ContactInput, 0, len(req.Contacts))
	for _, c := range req.Contacts {
		contacts = append(contacts, campaignsvc.ContactInput{
			PhoneNumber: c.PhoneNumber,
			Name:        c.Name,
			CustomData:  c.CustomData,
		})
	}

	if err := h.campaigns.AddContacts(ctx.Context(), id, contacts); err != nil {
		return translateError(err)
	}

	return ctx.SendStatus(http.StatusAccepted)
}

func (h *HandlerSet) listContacts(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", "100"))
	status := domain.ContactStatus(ctx.Query("status", ""))

	contacts, err := h.campaigns.ListContacts(ctx.Context(), id, status, limit)
	if err != nil {
		return translateError(err)
	}

	resp := listContactsResponse{Contacts: make([]contactResponse, 0, len(contacts))}
	for _, c := range contacts {
		resp.Contacts = append(resp.Contacts, contactResponse{
			ID:            c.ID,
			PhoneNumber:   c.PhoneNumber,
			Name:          c.Name,
			Status:        c.Status,
			Attempts:      c.Attempts,
			LastCallAt:    c.LastCallAt,
			NextAttemptAt: c.NextAttemptAt,
			CreatedAt:     c.CreatedAt,
		})
	}

	return ctx.Status(http.StatusOK).JSON(resp)
}

func (h *HandlerSet) listCampaignCalls(ctx *fiber.Ctx) error {
	id, err := parseUUID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid campaign id")
	}

	limit, _ := strconv.Atoi(ctx.Query("limit", "100"))
	token := ctx.Query("page_token", "")
	paging, err := campaignsvc.DecodePagingState(token)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid page token")
	}

	result, err := h.campaigns.ListCallRecords(ctx.Context(), id, limit, paging)
	if err != nil {
		return translateError(err)
	}

	resp := listCallRecordsResponse{Calls: make([]callRecordResponse, 0, len(result.Records))}
	for _, r := range result.Records {
		resp.Calls = append(resp.Calls, callRecordResponse{
			ID:         r.ID,
			ContactID:  r.ContactID,
			CallHandle: r.CallHandle,
			Outcome:    r.Outcome,
			DurationS:  int(r.Duration / time.Second),
			WaitTimeS:  int(r.WaitTime / time.Second),
			AnsweredAt: r.AnsweredAt,
			EndedAt:    r.EndedAt,
			Notes:      r.Notes,
			CreatedAt:  r.CreatedAt,
		})
	}
	resp.NextPage = campaignsvc.EncodePagingState(result.PagingState)

	return ctx.Status(http.StatusOK).JSON(resp)
}

func toCampaignResponse(campaign *domain.Campaign) campaignResponse {
	resp := campaignResponse{
		ID:          campaign.ID,
		Name:        campaign.Name,
		Description: campaign.Description,
		Type:        campaign.Type,
		Status:      campaign.Status,
		Settings: settingsResponse{
			MaxAttempts:          campaign.Settings.MaxAttempts,
			RetryIntervalMinutes: int(campaign.Settings.RetryInterval / time.Minute),
			MaxCallDurationS:     int(campaign.Settings.MaxCallDuration / time.Second),
			SimultaneousCalls:    campaign.Settings.SimultaneousCalls,
			CallerIDNumber:       campaign.Settings.CallerIDNumber,
			CallerIDName:         campaign.Settings.CallerIDName,
			AudioFilePath:        campaign.Settings.AudioFilePath,
			QueueID:              campaign.Settings.QueueID,
			DTMFOptions:          campaign.Settings.DTMFOptions,
		},
		Schedules:   make([]scheduleWindowResponse, 0, len(campaign.Schedules)),
		CreatedAt:   campaign.CreatedAt,
		UpdatedAt:   campaign.UpdatedAt,
		StartedAt:   campaign.StartedAt,
		CompletedAt: campaign.CompletedAt,
	}

	for _, window := range campaign.Schedules {
		resp.Schedules = append(resp.Schedules, scheduleWindowResponse{
			DayOfWeek: int(window.DayOfWeek),
			Start:     formatMinute(window.StartMinute),
			End:       formatMinute(window.EndMinute),
			Timezone:  window.Timezone,
			Enabled:   window.Enabled,
		})
	}

	return resp
}

func toCreateCampaignInput(req createCampaignRequest) (campaignsvc.CreateCampaignInput, error) {
	windows, err := parseScheduleWindows(req.Schedules)
	if err != nil {
		return campaignsvc.CreateCampaignInput{}, err
	}

	contacts := make([]campaignsvc.ContactInput, 0, len(req.Contacts))
	for _, c := range req.Contacts {
		contacts = append(contacts, campaignsvc.ContactInput{
			PhoneNumber: c.PhoneNumber,
			Name:        c.Name,
			CustomData:  c.CustomData,
		})
	}

	return campaignsvc.CreateCampaignInput{
		Name:        req.Name,
		Description: req.Description,
		Type:        domain.CampaignType(req.Type),
		Settings:    toSettings(req.Settings),
		Schedules:   windows,
		Contacts:    contacts,
	}, nil
}

func toSettings(req settingsRequest) domain.CampaignSettings {
	return domain.CampaignSettings{
		MaxAttempts:       req.MaxAttempts,
		RetryInterval:     time.Duration(req.RetryIntervalMinutes) * time.Minute,
		MaxCallDuration:   time.Duration(req.MaxCallDurationS) * time.Second,
		SimultaneousCalls: req.SimultaneousCalls,
		CallerIDNumber:    req.CallerIDNumber,
		CallerIDName:      req.CallerIDName,
		AudioFilePath:     req.AudioFilePath,
		QueueID:           req.QueueID,
		DTMFOptions:       req.DTMFOptions,
	}
}

func parseScheduleWindows(req []scheduleWindowRequest) ([]domain.ScheduleWindow, error) {
	windows := make([]domain.ScheduleWindow, 0, len(req))
	for _, w := range req {
		start, err := parseMinute(w.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid start time %q", apperrors.ErrValidation, w.Start)
		}
		end, err := parseMinute(w.End)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid end time %q", apperrors.ErrValidation, w.End)
		}
		enabled := true
		if w.Enabled != nil {
			enabled = *w.Enabled
		}
		windows = append(windows, domain.ScheduleWindow{
			DayOfWeek:   time.Weekday(w.DayOfWeek),
			StartMinute: start,
			EndMinute:   end,
			Timezone:    w.Timezone,
			Enabled:     enabled,
		})
	}
	return windows, nil
}

func parseMinute(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatMinute(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(value)
}
