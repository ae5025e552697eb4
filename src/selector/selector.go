// Package selector executes cache-miss requests against ranked
// providers with per-attempt timeouts, circuit breaking, and a
// degraded-but-safe fallback when every candidate is exhausted.
package selector

import (
	"context"
	"time"

	"github.com/mindroute-ai/mindroute/src/config"
	"github.com/mindroute-ai/mindroute/src/logx"
	"github.com/mindroute-ai/mindroute/src/models"
	"github.com/mindroute-ai/mindroute/src/utils"
)

// FallbackResponse is returned when no provider is reachable. It is a
// degraded conversational reply, deliberately distinct from the crisis
// responses.
const FallbackResponse = "I'm having trouble reaching my full capabilities right now. " +
	"I'm still here with you — could you tell me a bit more while I recover, " +
	"or try asking again in a moment?"

const defaultAttemptTimeout = 10 * time.Second

// Outcome is what one routing attempt through the selector produced.
type Outcome struct {
	Text     string
	Provider string
	Model    string
	CostUSD  float64
	Latency  time.Duration
	Degraded bool
}

type Selector struct {
	clients  map[string]models.ProviderClient
	profiles map[string]*Profile
	timeouts map[string]time.Duration
	breaker  config.BreakerConfig
	now      func() time.Time
}

func New(cfgs []config.ProviderConfig, clients map[string]models.ProviderClient, breaker config.BreakerConfig) *Selector {
	s := &Selector{
		clients:  clients,
		profiles: make(map[string]*Profile, len(cfgs)),
		timeouts: make(map[string]time.Duration, len(cfgs)),
		breaker:  breaker,
		now:      time.Now,
	}
	for i := range cfgs {
		s.profiles[cfgs[i].ID] = NewProfile(cfgs[i].ID, cfgs[i].BaseRank)
		timeout := cfgs[i].Timeout
		if timeout <= 0 {
			timeout = defaultAttemptTimeout
		}
		s.timeouts[cfgs[i].ID] = timeout
	}
	return s
}

// Execute tries the ranked candidates in order, skipping providers with
// an open breaker. A timeout is treated identically to an error:
// advance to the next candidate. Exhaustion yields the degraded
// fallback outcome, never an error.
func (s *Selector) Execute(ctx context.Context, prompt string, ranking []string) *Outcome {
	started := s.now()

	for _, id := range ranking {
		client, ok := s.clients[id]
		if !ok {
			continue
		}
		profile := s.profiles[id]
		if !profile.Available(s.now(), s.breaker.Cooldown) {
			logx.Debug().Str("provider", id).Msg("circuit breaker open, skipping provider")
			continue
		}

		attemptStart := s.now()
		completion, err := s.attempt(ctx, client, prompt)
		latency := s.now().Sub(attemptStart)

		if err != nil {
			profile.RecordFailure(s.now(), s.breaker.FailureThreshold, s.breaker.Window)
			logx.Warn().Err(err).Str("provider", id).Dur("latency", latency).Msg("provider attempt failed")
			continue
		}

		cost := utils.EstimateCost(completion.InputTokens, completion.OutputTokens, completion.Model)
		profile.RecordSuccess(latency, cost)

		return &Outcome{
			Text:     completion.Text,
			Provider: id,
			Model:    completion.Model,
			CostUSD:  cost,
			Latency:  s.now().Sub(started),
		}
	}

	logx.Error().Int("candidates", len(ranking)).Msg("all providers exhausted, serving degraded fallback")
	return &Outcome{
		Text:     FallbackResponse,
		Degraded: true,
		Latency:  s.now().Sub(started),
	}
}

func (s *Selector) attempt(ctx context.Context, client models.ProviderClient, prompt string) (*models.Completion, error) {
	timeout := s.timeouts[client.ID()]
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return client.Complete(actx, prompt)
}

// Profiles returns a point-in-time view of every provider profile.
func (s *Selector) Profiles() []View {
	views := make([]View, 0, len(s.profiles))
	for _, p := range s.profiles {
		views = append(views, p.View())
	}
	return views
}

// Profile returns the live profile for one provider, or nil.
func (s *Selector) Profile(id string) *Profile {
	return s.profiles[id]
}
