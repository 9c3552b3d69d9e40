package worker

import (
	"context"

	"text2phenotype.com/toponn/numberer"
	"text2phenotype.com/toponn/redis"
)

type redisTransactions interface {
	getSharedLabels(ctx context.Context) (*numberer.Numberer, error)
	close()
}

type redisClientWrapper struct {
	client    *redis.Client
	labelsKey string
}

func (wrapper *redisClientWrapper) close() {
	_ = wrapper.client.Close()
}

func (wrapper *redisClientWrapper) getSharedLabels(ctx context.Context) (*numberer.Numberer, error) {
	return wrapper.client.GetNumberer(ctx, wrapper.labelsKey)
}
