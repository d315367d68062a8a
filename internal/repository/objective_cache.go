package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
)

const objectiveKeyPrefix = "sla:objective"

type cachedObjective struct {
	ServiceID            string `json:"service_id"`
	Priority             string `json:"priority"`
	FirstResponseMinutes int    `json:"first_response_minutes"`
	ResolutionMinutes    int    `json:"resolution_minutes"`
}

type cachedObjectiveRepository struct {
	next   ObjectiveRepository
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedObjectiveRepository wraps next with a Redis read-through cache.
// Cache failures are logged and fall back to next.
func NewCachedObjectiveRepository(next ObjectiveRepository, client redis.Cmdable, ttl time.Duration, logger *zap.Logger) ObjectiveRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedObjectiveRepository{next: next, client: client, ttl: ttl, logger: logger}
}

func objectiveKey(serviceID string, priority domain.IncidentPriority) string {
	return fmt.Sprintf("%s:%s:%s", objectiveKeyPrefix, serviceID, priority)
}

func (r *cachedObjectiveRepository) Get(ctx context.Context, serviceID string, priority domain.IncidentPriority) (*domain.SLAObjective, error) {
	key := objectiveKey(serviceID, priority)

	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedObjective
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &domain.SLAObjective{
				ServiceID:            cached.ServiceID,
				Priority:             domain.IncidentPriority(cached.Priority),
				FirstResponseMinutes: cached.FirstResponseMinutes,
				ResolutionMinutes:    cached.ResolutionMinutes,
			}, nil
		}
		r.logger.Warn("discarding corrupt objective cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("objective cache read failed", zap.String("key", key), zap.Error(err))
	}

	objective, err := r.next.Get(ctx, serviceID, priority)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(toCachedObjective(objective))
	if err == nil {
		if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
			r.logger.Warn("objective cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return objective, nil
}

func (r *cachedObjectiveRepository) Upsert(ctx context.Context, objective *domain.SLAObjective) error {
	if err := r.next.Upsert(ctx, objective); err != nil {
		return err
	}
	key := objectiveKey(objective.ServiceID, objective.Priority)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Warn("objective cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func toCachedObjective(o *domain.SLAObjective) cachedObjective {
	return cachedObjective{
		ServiceID:            o.ServiceID,
		Priority:             string(o.Priority),
		FirstResponseMinutes: o.FirstResponseMinutes,
		ResolutionMinutes:    o.ResolutionMinutes,
	}
}
