package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fadedpez/clubwheel/pkg/entities"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "clubwheel:recent_wins"

// RedisFeed shares the recent-wins list between instances through a capped Redis list
type RedisFeed struct {
	client   redis.UniversalClient
	key      string
	capacity int
}

// NewRedisFeed creates a feed stored under key
func NewRedisFeed(client redis.UniversalClient, key string, capacity int) *RedisFeed {
	if key == "" {
		key = DefaultRedisKey
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RedisFeed{
		client:   client,
		key:      key,
		capacity: capacity,
	}
}

// Push appends a win and trims the list in one round trip
func (f *RedisFeed) Push(ctx context.Context, win entities.RecentWin) ([]entities.RecentWin, error) {
	payload, err := json.Marshal(win)
	if err != nil {
		return nil, fmt.Errorf("error encoding recent win: %w", err)
	}

	var rangeCmd *redis.StringSliceCmd
	_, err = f.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, f.key, payload)
		pipe.LTrim(ctx, f.key, int64(-f.capacity), -1)
		rangeCmd = pipe.LRange(ctx, f.key, 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error pushing recent win: %w", err)
	}

	return decodeWins(rangeCmd.Val())
}

// Snapshot returns the current contents
func (f *RedisFeed) Snapshot(ctx context.Context) ([]entities.RecentWin, error) {
	values, err := f.client.LRange(ctx, f.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading recent wins: %w", err)
	}
	return decodeWins(values)
}

func decodeWins(values []string) ([]entities.RecentWin, error) {
	wins := make([]entities.RecentWin, 0, len(values))
	for _, value := range values {
		var win entities.RecentWin
		if err := json.Unmarshal([]byte(value), &win); err != nil {
			return nil, fmt.Errorf("error decoding recent win: %w", err)
		}
		wins = append(wins, win)
	}
	return wins, nil
}
