package job

import (
	"time"

	"github.com/postboard/postboard/web/cache"
)

// RedisExpireJob lets TTLs run out on the embedded Redis server.
type RedisExpireJob struct {
	redis *cache.Redis
}

func NewRedisExpireJob(redis *cache.Redis) *RedisExpireJob {
	return &RedisExpireJob{redis: redis}
}

func (j *RedisExpireJob) Run() {
	j.redis.ExpireKeys(time.Now())
}
