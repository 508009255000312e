// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medorahealth/medora/internal/platform/constants"
)

// RedisCooldownRepository implements CooldownRepository using Redis.
//
// Redis holds only the delivery cooldown marker. Token validity is never
// cached here; every validation re-reads the relational store.
type RedisCooldownRepository struct {
	client *redis.Client
}

// NewCooldownRepository creates a new Redis-backed CooldownRepository.
func NewCooldownRepository(client *redis.Client) *RedisCooldownRepository {
	return &RedisCooldownRepository{client: client}
}

/*
Acquire attempts to claim the passcode delivery slot for a recipient.

Description: SET NX with TTL makes the claim atomic across instances. The
first caller inside a window wins; everyone else is told to wait.

Parameters:
  - context: context.Context
  - recipient: string
  - ttl: time.Duration

Returns:
  - bool: Whether the slot was free
  - error: Connectivity errors
*/
func (repository *RedisCooldownRepository) Acquire(context context.Context, recipient string, ttl time.Duration) (bool, error) {
	key := constants.RedisPrefixOTPCooldown + recipient

	acquired, err := repository.client.SetNX(context, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis_cooldown_acquire_failed: %w", err)
	}

	return acquired, nil
}
