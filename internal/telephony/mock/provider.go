package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acme/campaign-dialer/internal/config"
	"github.com/acme/campaign-dialer/internal/telephony"
)

// Provider simulates outbound call behaviour. Each originated call rings for
// a random time, then resolves to answered, busy or no-answer per the
// configured rates, emitting events on the shared channel.
type Provider struct {
	answerRate  float64
	busyRate    float64
	maxRingTime time.Duration
	events      chan telephony.Event

	mu  sync.Mutex
	rng *rand.Rand
}

// NewProvider constructs a mock provider.
func NewProvider(cfg config.TelephonyConfig) *Provider {
	answerRate := cfg.AnswerRate
	if answerRate <= 0 {
		answerRate = 0.5
	}
	busyRate := cfg.BusyRate
	if busyRate <= 0 {
		busyRate = 0.2
	}
	ring := cfg.MaxRingTime
	if ring <= 0 {
		ring = 5 * time.Second
	}
	return &Provider{
		answerRate:  answerRate,
		busyRate:    busyRate,
		maxRingTime: ring,
		events:      make(chan telephony.Event, 256),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Originate starts a simulated call and returns its handle.
func (p *Provider) Originate(ctx context.Context, req telephony.OriginateRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	handle := fmt.Sprintf("mock-%s", uuid.NewString())
	go p.simulate(handle, req)
	return handle, nil
}

// Events delivers lifecycle events for originated calls.
func (p *Provider) Events() <-chan telephony.Event {
	return p.events
}

func (p *Provider) simulate(handle string, req telephony.OriginateRequest) {
	ring := p.randDuration(p.maxRingTime)
	time.Sleep(ring)

	roll := p.randFloat()
	switch {
	case roll < p.answerRate:
		p.events <- telephony.Event{
			CallHandle: handle,
			Kind:       telephony.EventAnswered,
			OccurredAt: time.Now().UTC(),
		}

		talk := p.randDuration(20 * time.Second)
		if req.MaxDuration > 0 && talk > req.MaxDuration {
			talk = req.MaxDuration
		}
		time.Sleep(talk)

		p.events <- telephony.Event{
			CallHandle: handle,
			Kind:       telephony.EventHangup,
			Cause:      telephony.CauseNormalClearing,
			Duration:   talk,
			OccurredAt: time.Now().UTC(),
		}
	case roll < p.answerRate+p.busyRate:
		p.events <- telephony.Event{
			CallHandle: handle,
			Kind:       telephony.EventHangup,
			Cause:      telephony.CauseUserBusy,
			OccurredAt: time.Now().UTC(),
		}
	default:
		p.events <- telephony.Event{
			CallHandle: handle,
			Kind:       telephony.EventHangup,
			Cause:      telephony.CauseNoAnswer,
			OccurredAt: time.Now().UTC(),
		}
	}
}

func (p *Provider) randDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(p.rng.Int63n(int64(max)) + 1)
}

func (p *Provider) randFloat() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}
