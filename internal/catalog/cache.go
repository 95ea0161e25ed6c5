package catalog

import (
	"context"
	"errors"
)

type Cache interface {
	Get(ctx context.Context) (*Snapshot, error)
	Set(ctx context.Context, snapshot *Snapshot) error
	Delete(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")
