package dialer

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/campaign-dialer/internal/config"
	"github.com/acme/campaign-dialer/internal/domain"
	"github.com/acme/campaign-dialer/internal/queue"
	"github.com/acme/campaign-dialer/internal/repository"
	"github.com/acme/campaign-dialer/internal/telephony"
	"github.com/acme/campaign-dialer/pkg/logger"
)

// StatusPublisher emits terminal outcomes for downstream consumers.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg queue.CallStatusMessage) error
}

// LiveCounter mirrors per-campaign active counts for cross-process reporting.
type LiveCounter interface {
	Incr(ctx context.Context, campaignID uuid.UUID) error
	Decr(ctx context.Context, campaignID uuid.UUID) error
}

// Deps bundles the engine's collaborators. Publisher and Live are optional.
type Deps struct {
	Campaigns repository.CampaignRepository
	Schedules repository.ScheduleRepository
	Contacts  repository.ContactRepository
	Records   repository.CallRecordStore
	Stats     repository.CampaignStatisticsRepository
	Provider  telephony.Provider
	Publisher StatusPublisher
	Live      LiveCounter
	Logger    *logger.Logger
}

// Engine is the campaign dialing engine: a periodic scheduler that starts
// new call attempts within each campaign's capacity and schedule, plus the
// outcome workers that react to call lifecycle events.
type Engine struct {
	deps Deps

	tickInterval     time.Duration
	fetchLimit       int
	workers          int
	bufferSize       int
	originateTimeout time.Duration

	registry *Registry
	shards   []chan telephony.Event
	shardMu  sync.RWMutex
	closed   bool
	inTick   atomic.Bool
	now      func() time.Time
	wg       sync.WaitGroup
}

// New constructs the engine.
func New(cfg config.DialerConfig, deps Deps) *Engine {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = 30 * time.Second
	}
	limit := cfg.CampaignFetchLimit
	if limit <= 0 {
		limit = 100
	}
	workers := cfg.EventWorkers
	if workers <= 0 {
		workers = 4
	}
	buffer := cfg.EventBufferSize
	if buffer <= 0 {
		buffer = 64
	}
	timeout := cfg.OriginateTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	shards := make([]chan telephony.Event, workers)
	for i := range shards {
		shards[i] = make(chan telephony.Event, buffer)
	}

	return &Engine{
		deps:             deps,
		tickInterval:     tick,
		fetchLimit:       limit,
		workers:          workers,
		bufferSize:       buffer,
		originateTimeout: timeout,
		registry:         NewRegistry(),
		shards:           shards,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// ActiveCallCount reports in-flight calls across all campaigns.
func (e *Engine) ActiveCallCount() int {
	return e.registry.Count()
}

// ActiveCallCountForCampaign reports in-flight calls for one campaign.
func (e *Engine) ActiveCallCountForCampaign(campaignID uuid.UUID) int {
	return e.registry.CountForCampaign(campaignID)
}

// Run executes the scheduling loop and outcome workers until cancelled.
// In-flight outcome handling is drained before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go func(shard chan telephony.Event) {
			defer e.wg.Done()
			for ev := range shard {
				e.handleEvent(context.Background(), ev)
			}
		}(e.shards[i])
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pumpProviderEvents(ctx)
	}()

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		if err := e.tick(ctx); err != nil && ctx.Err() == nil {
			e.deps.Logger.Error("dialer: tick failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			e.closeShards()
			e.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Submit routes a call event to its handle's worker. Events for the same
// handle always land on the same shard, so handling per handle is serial.
// Events arriving after shutdown are dropped: producers such as the Kafka
// worker outlive Run and must never hit a closed shard.
func (e *Engine) Submit(ev telephony.Event) {
	e.shardMu.RLock()
	defer e.shardMu.RUnlock()
	if e.closed {
		e.deps.Logger.Debug("dialer: event dropped after shutdown", zap.String("call_handle", ev.CallHandle))
		return
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(ev.CallHandle))
	e.shards[int(h.Sum32())%len(e.shards)] <- ev
}

// closeShards stops the outcome workers. Holding the write lock until the
// channels are closed excludes any Submit in flight.
func (e *Engine) closeShards() {
	e.shardMu.Lock()
	defer e.shardMu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for _, shard := range e.shards {
		close(shard)
	}
}

func (e *Engine) pumpProviderEvents(ctx context.Context) {
	events := e.deps.Provider.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.Submit(ev)
		}
	}
}

// tick runs one scheduling pass. A tick arriving while a previous one is
// still running is skipped entirely.
func (e *Engine) tick(ctx context.Context) error {
	if !e.inTick.CompareAndSwap(false, true) {
		e.deps.Logger.Debug("dialer: previous tick still running, skipping")
		return nil
	}
	defer e.inTick.Store(false)

	tracer := otel.Tracer("dialer.engine")
	sctx, span := tracer.Start(ctx, "dialer.tick")
	defer span.End()

	now := e.now()
	campaigns, err := e.loadCampaigns(sctx)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.Int("campaign.count", len(campaigns)))
	e.deps.Logger.Debug("dialer: tick", zap.Int("campaigns", len(campaigns)), zap.Time("now", now))

	for _, campaign := range campaigns {
		cctx, cspan := tracer.Start(sctx, "dialer.campaign", trace.WithAttributes(
			attribute.String("campaign.id", campaign.ID.String()),
			attribute.Int("simultaneous_calls", campaign.Settings.SimultaneousCalls),
		))

		if err := e.processCampaign(cctx, campaign, now); err != nil {
			cspan.RecordError(err)
			e.deps.Logger.Error("dialer: campaign processing failed",
				zap.Error(err), zap.String("campaign_id", campaign.ID.String()))
		}
		cspan.End()
	}

	return nil
}

func (e *Engine) loadCampaigns(ctx context.Context) ([]*domain.Campaign, error) {
	campaigns, err := e.deps.Campaigns.ListByStatuses(ctx, domain.DialableStatuses, e.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("load campaigns: %w", err)
	}
	for _, c := range campaigns {
		windows, err := e.deps.Schedules.List(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("load schedules for %s: %w", c.ID, err)
		}
		c.Schedules = windows
	}
	return campaigns, nil
}

func (e *Engine) processCampaign(ctx context.Context, campaign *domain.Campaign, now time.Time) error {
	log := e.deps.Logger

	if !isOpen(campaign, now) {
		log.Debug("dialer: campaign outside calling windows", zap.String("campaign_id", campaign.ID.String()))
		return nil
	}

	free := campaign.Settings.SimultaneousCalls - e.registry.CountForCampaign(campaign.ID)
	if free <= 0 {
		// Saturated: no contact query at all.
		return nil
	}

	contacts, err := e.deps.Contacts.NextEligible(ctx, campaign.ID, now, free)
	if err != nil {
		return fmt.Errorf("select contacts: %w", err)
	}
	if len(contacts) == 0 {
		return nil
	}

	log.Info("dialer: dispatching",
		zap.String("campaign_id", campaign.ID.String()),
		zap.Int("free_slots", free),
		zap.Int("contacts", len(contacts)))

	for _, contact := range contacts {
		if err := e.initiate(ctx, campaign, contact); err != nil {
			log.Error("dialer: initiate failed",
				zap.Error(err),
				zap.String("campaign_id", campaign.ID.String()),
				zap.String("contact_id", contact.ID.String()))
		}
	}

	return nil
}
