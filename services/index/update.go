package index

import (
	"context"
	"errors"
	"time"

	"github.com/meghashyamc/searchsync/db/jobqueue"
	"github.com/meghashyamc/searchsync/db/recorddb"
	"github.com/meghashyamc/searchsync/db/searchdb"
	"github.com/meghashyamc/searchsync/metrics"
	"github.com/meghashyamc/searchsync/registry"
)

// UpdateReport summarizes one incremental update run.
type UpdateReport struct {
	Pending   int         `json:"pending"`
	Processed int         `json:"processed"`
	Skipped   int         `json:"skipped"`
	Failures  []*JobError `json:"-"`
}

// Err joins the per-job failures of the run, or returns nil if every job succeeded.
func (r *UpdateReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}

	errs := make([]error, len(r.Failures))
	for i, failure := range r.Failures {
		errs[i] = failure
	}

	return errors.Join(errs...)
}

// UpdateIndex applies the jobs queued at the time of the call to the live index. A job that fails is logged,
// reported and left queued while the remaining jobs carry on. Errors returned directly (no writer, a failed
// flush, cancellation) end the run, and jobs whose changes were not flushed stay queued.
func (s *Service) UpdateIndex(ctx context.Context, flushEachJob bool) (*UpdateReport, error) {
	start := time.Now()
	defer func() { metrics.IndexUpdateDuration.Observe(time.Since(start).Seconds()) }()

	ids, err := s.queue.PendingIDs()
	if err != nil {
		return nil, err
	}
	metrics.IndexPendingJobs.Set(float64(len(ids)))

	report := &UpdateReport{Pending: len(ids)}
	if len(ids) == 0 {
		return report, nil
	}

	writer, err := s.index.OpenWriter()
	if err != nil {
		s.logger.Error("could not open index for update", "err", err.Error())
		return report, err
	}
	defer writer.Close()

	s.logger.Info("updating index", "pending_jobs", len(ids), "flush_each_job", flushEachJob)

	var completed []uint64
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("index update cancelled", "err", err.Error())
			if flushErr := s.commit(writer, completed); flushErr != nil {
				return report, flushErr
			}
			return report, err
		}

		job, err := s.queue.Get(id)
		if errors.Is(err, jobqueue.ErrNotFound) {
			// replaced by a newer job after the snapshot was taken
			report.Skipped++
			metrics.IndexJobsTotal.WithLabelValues("replaced", "skipped").Inc()
			continue
		}
		if err != nil {
			s.recordFailure(report, &JobError{JobID: id, Err: err})
			continue
		}

		if err := s.runJob(writer, job); err != nil {
			s.recordFailure(report, &JobError{
				JobID:      job.ID,
				EntityType: job.EntityType,
				EntityID:   job.EntityID,
				Action:     job.Action,
				Err:        err,
			})
			continue
		}

		if flushEachJob {
			if err := s.commit(writer, []uint64{job.ID}); err != nil {
				return report, err
			}
		} else {
			completed = append(completed, job.ID)
		}
		report.Processed++
		metrics.IndexJobsTotal.WithLabelValues(string(job.Action), "ok").Inc()
	}

	if !flushEachJob {
		if err := s.commit(writer, completed); err != nil {
			return report, err
		}
	}

	s.logger.Info("index update finished", "processed", report.Processed, "failed", len(report.Failures), "skipped", report.Skipped)

	return report, nil
}

// commit makes the buffered changes durable, then removes their jobs from the queue.
func (s *Service) commit(writer *searchdb.Writer, jobIDs []uint64) error {
	if err := writer.Flush(); err != nil {
		s.logger.Error("could not flush index, jobs stay queued", "jobs", len(jobIDs), "err", err.Error())
		return err
	}
	if len(jobIDs) == 0 {
		return nil
	}

	if err := s.queue.Delete(jobIDs...); err != nil {
		s.logger.Error("could not delete completed jobs", "jobs", len(jobIDs), "err", err.Error())
		return err
	}

	return nil
}

func (s *Service) runJob(writer *searchdb.Writer, job *jobqueue.Job) error {
	switch job.Action {
	case jobqueue.ActionUpdate:
		declaration, err := s.registry.Entity(job.EntityType)
		if err != nil {
			return err
		}

		record, found, err := s.records.Get(job.EntityType, job.EntityID)
		if err != nil {
			return err
		}
		if !found {
			s.logger.Info("record no longer exists, removing it from the index", "job_id", job.ID, "entity_type", job.EntityType, "entity_id", job.EntityID)
			return writer.Delete(registry.DocumentKey(job.EntityType, job.EntityID))
		}

		return s.indexRecord(writer, declaration, job.EntityType, record)

	case jobqueue.ActionDestroy:
		return writer.Delete(registry.DocumentKey(job.EntityType, job.EntityID))

	default:
		return &jobqueue.UnknownActionError{JobID: job.ID, Action: job.Action}
	}
}

// indexRecord writes the document for record, or deletes it when the indexing predicate is false.
func (s *Service) indexRecord(writer *searchdb.Writer, declaration registry.Declaration, entityType string, record *recorddb.Record) error {
	if !shouldIndex(declaration, record) {
		return writer.Delete(registry.DocumentKey(entityType, record.ID))
	}

	doc, err := buildDocument(declaration, record)
	if err != nil {
		return err
	}

	return writer.Replace(doc)
}

func (s *Service) recordFailure(report *UpdateReport, jobErr *JobError) {
	s.logger.Error("index job failed", "job_id", jobErr.JobID, "action", string(jobErr.Action), "entity_type", jobErr.EntityType, "entity_id", jobErr.EntityID, "err", jobErr.Err.Error())
	report.Failures = append(report.Failures, jobErr)
	metrics.IndexJobsTotal.WithLabelValues(string(jobErr.Action), "failed").Inc()
}
