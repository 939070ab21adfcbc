package app

import (
	"context"
	"fmt"

	"econ-snapshot/internal/cache"
	"econ-snapshot/internal/snapshot"
)

// ClearCache drops every cached group result from the shared redis backend.
// The memory backend lives only inside one process, so there is nothing to
// clear from the command line.
func (a *App) ClearCache(ctx context.Context) error {
	if a.Config.Cache.Backend != "redis" {
		fmt.Fprintf(a.Out, "cache backend %q keeps no state between runs; nothing to clear (use `snapshot --refresh` to bypass it)\n", a.Config.Cache.Backend)
		return nil
	}

	rc := a.Config.Cache.Redis
	client, err := cache.NewRedisClient(ctx, cache.RedisConfig{Addr: rc.Addr, Password: rc.Password, DB: rc.DB, Prefix: rc.Prefix})
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	defer client.Close()

	if err := cache.NewRedis[snapshot.GroupResult](client, rc.Prefix, cache.WithLogger(a.Logger)).Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "cleared cached groups under prefix %q\n", rc.Prefix)
	return nil
}
