package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/sgmotoworks/workshop_backend/config"
)

// StockLock serializes bulk stock ingestion (GRN) across instances.
// Best-effort only: correctness still comes from the per-product row locks
// taken inside the DB transaction. Returns a release func.
func StockLock(ctx context.Context, key string, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Redis not configured; fall through to DB row locks alone.
		return func() {}, nil
	}
	lockKey := fmt.Sprintf("stockLock:%s", key)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain stock lock", key, err)
		return nil, errors.New("could not obtain stock lock")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining stock lock", key, err)
		return nil, err
	}
	return func() { _ = lock.Release(ctx) }, nil
}
