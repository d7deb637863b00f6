package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/acme/campaign-dialer/internal/config"
	"github.com/acme/campaign-dialer/internal/dialer"
	"github.com/acme/campaign-dialer/internal/infra/db"
	"github.com/acme/campaign-dialer/internal/infra/redis"
	"github.com/acme/campaign-dialer/internal/queue"
	"github.com/acme/campaign-dialer/internal/repository"
	pgrepo "github.com/acme/campaign-dialer/internal/repository/postgres"
	scyllarepo "github.com/acme/campaign-dialer/internal/repository/scylla"
	campaignsvc "github.com/acme/campaign-dialer/internal/service/campaign"
	"github.com/acme/campaign-dialer/internal/telephony"
	telephonymock "github.com/acme/campaign-dialer/internal/telephony/mock"
	"github.com/acme/campaign-dialer/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	provider telephony.Provider

	// lazily initialised components
	components struct {
		once         sync.Once
		repositories *repositories
		services     *services
		publisher    *queue.StatusPublisher
		live         *redis.LiveCounts
	}
}

type repositories struct {
	Campaigns repository.CampaignRepository
	Schedules repository.ScheduleRepository
	Contacts  repository.ContactRepository
	Stats     repository.CampaignStatisticsRepository
	Records   repository.CallRecordStore
}

type services struct {
	Campaign *campaignsvc.Service
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	kafka, err := queue.NewKafka(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("bootstrap kafka: %w", err)
	}

	provider, err := newTelephonyProvider(cfg.Telephony)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:   cfg,
		Logger:   lg,
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Kafka:    kafka,
		provider: provider,
	}, nil
}

// newTelephonyProvider selects the call backend by configured name. An empty
// name defaults to the mock backend.
func newTelephonyProvider(cfg config.TelephonyConfig) (telephony.Provider, error) {
	switch cfg.ProviderName {
	case "", "mock":
		return telephonymock.NewProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown telephony provider %q", cfg.ProviderName)
	}
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		repos := &repositories{
			Campaigns: pgrepo.NewCampaignRepository(c.Postgres.DB()),
			Schedules: pgrepo.NewScheduleRepository(c.Postgres.DB()),
			Contacts:  pgrepo.NewContactRepository(c.Postgres.DB()),
			Stats:     pgrepo.NewCampaignStatisticsRepository(c.Postgres.DB()),
			Records:   scyllarepo.NewCallRecordStore(c.Scylla.Session()),
		}

		c.components.repositories = repos
		c.components.services = &services{
			Campaign: campaignsvc.NewService(repos.Campaigns, repos.Schedules, repos.Contacts, repos.Stats, repos.Records),
		}
		c.components.publisher = queue.NewStatusPublisher(c.Kafka, c.Config.Kafka.StatusTopic)
		c.components.live = redis.NewLiveCounts(c.Redis.Inner(), c.Config.Dialer.LiveCountTTL)
	})
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() *repositories {
	c.initComponents()
	return c.components.repositories
}

// Services exposes initialized services.
func (c *Container) Services() *services {
	c.initComponents()
	return c.components.services
}

// StatusPublisher exposes the Kafka outcome publisher.
func (c *Container) StatusPublisher() *queue.StatusPublisher {
	c.initComponents()
	return c.components.publisher
}

// TelephonyProvider exposes the configured call backend.
func (c *Container) TelephonyProvider() telephony.Provider {
	return c.provider
}

// LiveCounts exposes the cross-process active-call mirror.
func (c *Container) LiveCounts() *redis.LiveCounts {
	c.initComponents()
	return c.components.live
}

// Dialer assembles the dialing engine from container components.
func (c *Container) Dialer() *dialer.Engine {
	c.initComponents()
	repos := c.components.repositories
	return dialer.New(c.Config.Dialer, dialer.Deps{
		Campaigns: repos.Campaigns,
		Schedules: repos.Schedules,
		Contacts:  repos.Contacts,
		Records:   repos.Records,
		Stats:     repos.Stats,
		Provider:  c.provider,
		Publisher: c.components.publisher,
		Live:      c.components.live,
		Logger:    c.Logger.Named("dialer"),
	})
}

// EnsureTopics ensures required Kafka topics exist.
func (c *Container) EnsureTopics(ctx context.Context) error {
	topics := []string{c.Config.Kafka.CallEventsTopic, c.Config.Kafka.StatusTopic}
	return c.Kafka.EnsureTopics(ctx, topics, 12, 1)
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.components.publisher != nil {
		if err := c.components.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("status publisher close: %w", err))
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
