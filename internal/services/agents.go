package services

import (
	"context"
	"fmt"
	"time"

	"evosync/internal/models"
	"evosync/internal/store"

	gocache "github.com/patrickmn/go-cache"
)

// AgentResolver looks up the AI agent linked to an instance and caches the
// result for a short window, since most webhook bursts hit the same instance
// repeatedly. Negative results (no agent) are cached too.
type AgentResolver struct {
	store store.Store
	cache *gocache.Cache
}

// NewAgentResolver creates a resolver with a one-minute cache.
func NewAgentResolver(st store.Store) (*AgentResolver, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil for AgentResolver")
	}
	return &AgentResolver{
		store: st,
		cache: gocache.New(time.Minute, 5*time.Minute),
	}, nil
}

// Resolve returns the active agent for the instance, or nil when none is
// linked or the linked agent is inactive.
func (r *AgentResolver) Resolve(ctx context.Context, instance string) (*models.AIAgent, error) {
	if cached, found := r.cache.Get(instance); found {
		agent, _ := cached.(*models.AIAgent)
		return agent, nil
	}

	agent, err := r.store.ActiveAgentForInstance(ctx, instance)
	if err != nil {
		return nil, err
	}

	r.cache.Set(instance, agent, gocache.DefaultExpiration)
	return agent, nil
}

// Invalidate drops the cached entry for an instance, e.g. after its agent
// configuration changed.
func (r *AgentResolver) Invalidate(instance string) {
	r.cache.Delete(instance)
}
