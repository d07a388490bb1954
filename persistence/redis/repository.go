package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/waterflow/logger"
	"github.com/mohitkumar/waterflow/model"
	"github.com/mohitkumar/waterflow/persistence"
	"github.com/mohitkumar/waterflow/util"
	"go.uber.org/zap"
)

const CONTEXT_KEY string = "CONTEXT"
const TRACE_KEY string = "TRACE"
const TRACE_CONTEXTS_KEY string = "TRACE_CONTEXTS"

type redisRepository struct {
	*baseDao
	contextEncDec util.EncoderDecoder[model.FlowContext]
	traceEncDec   util.EncoderDecoder[model.FlowTrace]
}

var _ persistence.Repository = new(redisRepository)

func NewRedisRepository(conf Config) *redisRepository {
	return &redisRepository{
		baseDao:       newBaseDao(conf),
		contextEncDec: util.NewJsonEncoderDecoder[model.FlowContext](),
		traceEncDec:   util.NewJsonEncoderDecoder[model.FlowTrace](),
	}
}

func (r *redisRepository) SaveContexts(ctx context.Context, contexts ...*model.FlowContext) error {
	if len(contexts) == 0 {
		return nil
	}
	key := r.getNamespaceKey(CONTEXT_KEY)
	values := make([]string, 0, 2*len(contexts))
	members := make(map[string][]any)
	for _, fc := range contexts {
		data, err := r.contextEncDec.Encode(*fc)
		if err != nil {
			return err
		}
		values = append(values, fc.Id, string(data))
		traceKey := r.getNamespaceKey(TRACE_CONTEXTS_KEY, fc.TraceId)
		members[traceKey] = append(members[traceKey], fc.Id)
	}
	_, err := r.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		if err := pipe.HSet(ctx, key, values).Err(); err != nil {
			return err
		}
		for traceKey, ids := range members {
			if err := pipe.SAdd(ctx, traceKey, ids...).Err(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("error saving flow contexts", zap.Int("count", len(contexts)), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisRepository) GetContext(ctx context.Context, id string) (*model.FlowContext, error) {
	key := r.getNamespaceKey(CONTEXT_KEY)
	str, err := r.redisClient.HGet(ctx, key, id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, fmt.Errorf("context %s: %w", id, persistence.ErrNotFound)
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.contextEncDec.DecodeString(str)
}

// ListContexts returns the trace's contexts ordered by creation time.
func (r *redisRepository) ListContexts(ctx context.Context, traceId string) ([]*model.FlowContext, error) {
	ids, err := r.redisClient.SMembers(ctx, r.getNamespaceKey(TRACE_CONTEXTS_KEY, traceId)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	if len(ids) == 0 {
		return []*model.FlowContext{}, nil
	}
	values, err := r.redisClient.HMGet(ctx, r.getNamespaceKey(CONTEXT_KEY), ids...).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]*model.FlowContext, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			logger.Warn("context listed for trace but missing", zap.String("traceId", traceId), zap.String("contextId", ids[i]))
			continue
		}
		fc, err := r.contextEncDec.DecodeString(str)
		if err != nil {
			return nil, err
		}
		out = append(out, fc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreateAt.Equal(out[j].CreateAt) {
			return out[i].Id < out[j].Id
		}
		return out[i].CreateAt.Before(out[j].CreateAt)
	})
	return out, nil
}

func (r *redisRepository) SaveTrace(ctx context.Context, trace *model.FlowTrace) error {
	data, err := r.traceEncDec.Encode(*trace)
	if err != nil {
		return err
	}
	if err := r.redisClient.HSet(ctx, r.getNamespaceKey(TRACE_KEY), []string{trace.Id, string(data)}).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisRepository) GetTrace(ctx context.Context, id string) (*model.FlowTrace, error) {
	str, err := r.redisClient.HGet(ctx, r.getNamespaceKey(TRACE_KEY), id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, fmt.Errorf("trace %s: %w", id, persistence.ErrNotFound)
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.traceEncDec.DecodeString(str)
}
