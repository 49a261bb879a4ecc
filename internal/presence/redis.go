package presence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisOccupancy shares channel membership across instances through Redis
// sets keyed channel:<id>:users.
type RedisOccupancy struct {
	rdb *redis.Client
}

func NewRedisOccupancy(addr string) *RedisOccupancy {
	return &RedisOccupancy{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func channelKey(channel string) string {
	return "channel:" + channel + ":users"
}

func (o *RedisOccupancy) Join(ctx context.Context, channel, userId string) error {
	if err := o.rdb.SAdd(ctx, channelKey(channel), userId).Err(); err != nil {
		return fmt.Errorf("sadd %q: %w", channel, err)
	}
	return nil
}

func (o *RedisOccupancy) Leave(ctx context.Context, channel, userId string) error {
	if err := o.rdb.SRem(ctx, channelKey(channel), userId).Err(); err != nil {
		return fmt.Errorf("srem %q: %w", channel, err)
	}
	return nil
}

func (o *RedisOccupancy) Users(ctx context.Context, channel string) ([]string, error) {
	users, err := o.rdb.SMembers(ctx, channelKey(channel)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %q: %w", channel, err)
	}
	return users, nil
}

func (o *RedisOccupancy) Close() error {
	return o.rdb.Close()
}
