package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/meghashyamc/searchsync/api"
	"github.com/meghashyamc/searchsync/config"
	"github.com/meghashyamc/searchsync/db/jobqueue"
	"github.com/meghashyamc/searchsync/db/kvdb"
	"github.com/meghashyamc/searchsync/db/recorddb"
	"github.com/meghashyamc/searchsync/db/searchdb"
	"github.com/meghashyamc/searchsync/logger"
	"github.com/meghashyamc/searchsync/registry"
	"github.com/meghashyamc/searchsync/services/index"
	"github.com/meghashyamc/searchsync/services/search"
)

type dependencies struct {
	api.Dependencies

	kvDB   *kvdb.BoltDB
	cancel context.CancelFunc
}

// openDependencies opens the stores named in cfg and wires the services on top of them.
func openDependencies(ctx context.Context, cfg *config.Config, logger logger.Logger) (*dependencies, error) {
	declarationsPath := cfg.GetDeclarationsPath()
	if declarationsPath == "" {
		return nil, errors.New("no entity declarations file configured, set DECLARATIONS_PATH or registry.declarations_path")
	}
	reg, err := registry.LoadDeclarations(declarationsPath)
	if err != nil {
		logger.Error("failed to load entity declarations", "path", declarationsPath, "err", err.Error())
		return nil, err
	}

	kvDB, err := kvdb.New(logger, cfg.GetKVDBPath())
	if err != nil {
		logger.Error("error creating kvDB", "err", err.Error())
		return nil, err
	}

	deps := &dependencies{kvDB: kvDB}
	deps.Registry = reg

	queue, err := jobqueue.New(logger, kvDB)
	if err != nil {
		kvDB.Close()
		return nil, fmt.Errorf("failed to open job queue: %w", err)
	}

	deps.Records, err = recorddb.New(logger, kvDB, queue, reg.EntityTypes())
	if err != nil {
		kvDB.Close()
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	deps.Index, err = searchdb.New(logger, reg, cfg.GetIndexPath())
	if err != nil {
		kvDB.Close()
		logger.Error("error creating searchDB", "err", err.Error())
		return nil, err
	}

	ctx, deps.cancel = context.WithCancel(ctx)
	deps.Indexer = index.New(ctx, logger, reg, deps.Records, queue, deps.Index, kvDB, index.Options{
		RebuildBatchSize: cfg.GetRebuildBatchSize(),
	})
	deps.Engine = search.New(logger, reg, deps.Index, deps.Records)

	return deps, nil
}

func (d *dependencies) Close() error {
	d.cancel()
	return errors.Join(d.Index.Close(), d.kvDB.Close())
}
