package redis

import (
	"context"
	"strconv"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/waterflow/logger"
	"github.com/mohitkumar/waterflow/persistence"
	"go.uber.org/zap"
)

type redisDelayQueue struct {
	*baseDao
}

var _ persistence.DelayQueue = new(redisDelayQueue)

func NewRedisDelayQueue(conf Config) *redisDelayQueue {
	return &redisDelayQueue{
		baseDao: newBaseDao(conf),
	}
}

func (rq *redisDelayQueue) Push(ctx context.Context, queueName string, message []byte) error {
	return rq.PushWithDelay(ctx, queueName, 0, message)
}

func (rq *redisDelayQueue) PushWithDelay(ctx context.Context, queueName string, delay time.Duration, message []byte) error {
	queueName = rq.getNamespaceKey(queueName)
	member := rd.Z{
		Score:  float64(time.Now().Add(delay).UnixMilli()),
		Member: message,
	}
	if err := rq.redisClient.ZAdd(ctx, queueName, member).Err(); err != nil {
		logger.Error("error while push to redis delay queue", zap.String("queue", queueName), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

// Pop reads and removes every member whose score is due in one transaction.
func (rq *redisDelayQueue) Pop(ctx context.Context, queueName string) ([]string, error) {
	key := rq.getNamespaceKey(queueName)
	max := strconv.FormatInt(time.Now().UnixMilli(), 10)
	var zr *rd.StringSliceCmd
	_, err := rq.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		zr = pipe.ZRangeByScore(ctx, key, &rd.ZRangeBy{
			Min: strconv.Itoa(0),
			Max: max,
		})
		pipe.ZRemRangeByScore(ctx, key, strconv.Itoa(0), max)
		return nil
	})
	if err != nil {
		logger.Error("error while pop from redis delay queue", zap.String("queue", key), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	res, err := zr.Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	if len(res) == 0 {
		return nil, persistence.EmptyQueueError{QueueName: queueName}
	}
	return res, nil
}
