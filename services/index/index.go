package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/meghashyamc/searchsync/db/kvdb"
	"github.com/meghashyamc/searchsync/logger"
	"github.com/meghashyamc/searchsync/registry"
)

const (
	StatusQueued   = "queued"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"

	defaultRebuildBatchSize = 1000
	maxIndexUpdateTime      = 2 * time.Hour
	// finished update requests are kept this long for GetStatus
	statusRetention = 24 * time.Hour
)

var ErrUpdateInProgress = errors.New("index update already in progress")

type Options struct {
	RebuildBatchSize int
}

type Service struct {
	logger           logger.Logger
	registry         *registry.Registry
	records          RecordStore
	queue            JobQueue
	index            SearchIndex
	statusStore      StatusStore
	rebuildBatchSize int
	updateIndexC     chan updateRequest
	updating         atomic.Bool
}

type updateRequest struct {
	flushEachJob bool
	requestID    string
}

// UpdateStatus is the progress of an update requested through RequestUpdate.
type UpdateStatus struct {
	Status    string    `json:"status"`
	Processed int       `json:"processed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Errors    []string  `json:"errors,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns the indexing service. Asynchronous update requests are served by a goroutine that stops when ctx
// is done. statusStore may be nil when RequestUpdate is not used.
func New(ctx context.Context, log logger.Logger, reg *registry.Registry, records RecordStore, queue JobQueue, index SearchIndex, statusStore StatusStore, opts Options) *Service {
	batchSize := opts.RebuildBatchSize
	if batchSize <= 0 {
		batchSize = defaultRebuildBatchSize
	}

	indexService := &Service{
		logger:           logger.WithComponent(log, "indexer"),
		registry:         reg,
		records:          records,
		queue:            queue,
		index:            index,
		statusStore:      statusStore,
		rebuildBatchSize: batchSize,
		updateIndexC:     make(chan updateRequest, 1),
	}

	go indexService.serveUpdates(ctx)
	return indexService
}

// RequestUpdate starts UpdateIndex in the background and returns at once. It fails if an update started this way
// is still running.
func (s *Service) RequestUpdate(flushEachJob bool, requestID string) error {

	if !s.updating.CompareAndSwap(false, true) {
		s.logger.Warn("request to update index while an update is already in progress", "request_id", requestID)
		return ErrUpdateInProgress
	}

	s.setRequestStatus(requestID, &UpdateStatus{Status: StatusQueued})

	// This leads to s.UpdateIndex being called
	s.updateIndexC <- updateRequest{flushEachJob: flushEachJob, requestID: requestID}

	return nil
}

// GetStatus retrieves the progress of an update request.
func (s *Service) GetStatus(requestID string) (*UpdateStatus, error) {
	if s.statusStore == nil {
		return nil, fmt.Errorf("request not found: %w", &kvdb.NotFoundError{Bucket: kvdb.RequestsBucket, Key: requestID})
	}

	value, err := s.statusStore.Get(kvdb.RequestsBucket, requestID)
	if err != nil {
		return nil, fmt.Errorf("request not found: %w", err)
	}

	var status UpdateStatus
	if err := json.Unmarshal([]byte(value), &status); err != nil {
		return nil, fmt.Errorf("invalid status value: %w", err)
	}

	return &status, nil
}

// PruneStatuses deletes the status of every finished update request last updated before cutoff and returns how
// many were deleted. Queued and running requests are kept.
func (s *Service) PruneStatuses(cutoff time.Time) (int, error) {
	if s.statusStore == nil {
		return 0, nil
	}

	requestIDs, err := s.statusStore.GetAllKeys(kvdb.RequestsBucket)
	if err != nil {
		s.logger.Error("failed to list request statuses", "err", err.Error())
		return 0, fmt.Errorf("failed to list request statuses: %w", err)
	}

	pruned := 0
	for _, requestID := range requestIDs {
		status, err := s.GetStatus(requestID)
		if errors.Is(err, kvdb.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn("deleting unreadable request status", "request_id", requestID, "err", err.Error())
		} else if (status.Status != StatusComplete && status.Status != StatusFailed) || !status.UpdatedAt.Before(cutoff) {
			continue
		}

		if err := s.statusStore.Delete(kvdb.RequestsBucket, requestID); err != nil {
			return pruned, fmt.Errorf("failed to delete status of request %s: %w", requestID, err)
		}
		pruned++
	}

	if pruned > 0 {
		s.logger.Info("pruned finished update requests", "count", pruned)
	}
	return pruned, nil
}

func (s *Service) pruneExpiredStatuses() {
	if _, err := s.PruneStatuses(time.Now().UTC().Add(-statusRetention)); err != nil {
		s.logger.Warn("could not prune update request statuses", "err", err.Error())
	}
}

func (s *Service) serveUpdates(ctx context.Context) {
	s.pruneExpiredStatuses()

	for {
		select {
		case req := <-s.updateIndexC:
			s.runRequestedUpdate(ctx, req)
			s.pruneExpiredStatuses()
		case <-ctx.Done():
			s.logger.Info("index service stopped", "reason", ctx.Err())
			return
		}
	}
}

func (s *Service) runRequestedUpdate(ctx context.Context, req updateRequest) {
	updateCtx, cancel := context.WithTimeout(ctx, maxIndexUpdateTime)
	defer cancel()

	s.setRequestStatus(req.requestID, &UpdateStatus{Status: StatusRunning})

	report, err := s.UpdateIndex(updateCtx, req.flushEachJob)
	status := &UpdateStatus{Status: StatusComplete}
	if report != nil {
		status.Processed = report.Processed
		status.Skipped = report.Skipped
		status.Failed = len(report.Failures)
		for _, failure := range report.Failures {
			status.Errors = append(status.Errors, failure.Error())
		}
	}
	if err != nil {
		s.logger.Error("failed to update index", "request_id", req.requestID, "err", err.Error())
		status.Status = StatusFailed
		status.Errors = append(status.Errors, err.Error())
	}

	// a caller that sees the final status can request the next update
	s.updating.Store(false)
	s.setRequestStatus(req.requestID, status)
}

func (s *Service) setRequestStatus(requestID string, status *UpdateStatus) {
	if s.statusStore == nil {
		return
	}
	status.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(status)
	if err != nil {
		s.logger.Error("failed to marshal request status", "request_id", requestID, "err", err.Error())
		return
	}

	if err := s.statusStore.Set(kvdb.RequestsBucket, requestID, string(data)); err != nil {
		s.logger.Error("failed to update request status", "request_id", requestID, "status", status.Status, "err", err.Error())
	}
}
