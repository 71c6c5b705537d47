package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/brosis-admin-api/internal/models"
	"github.com/noah-isme/brosis-admin-api/pkg/jobs"
)

// JobTypeAudit labels audit entries on the job queue.
const JobTypeAudit = "audit_log"

// AuditWriter persists audit entries.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditQueue is the subset of jobs.Queue used by the sink.
type AuditQueue interface {
	Started() bool
	TryEnqueue(job jobs.Job) error
}

// AuditEntry is what callers hand to the audit sink.
type AuditEntry struct {
	Actor      BulkActor
	Action     string
	Resource   string
	ResourceID string
	Details    interface{}
}

// AuditService records audit entries without ever blocking or failing the
// caller. Entries go through a job queue when one is running and are written
// inline otherwise.
type AuditService struct {
	writer  AuditWriter
	queue   AuditQueue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditService constructs the sink. queue may be nil.
func NewAuditService(writer AuditWriter, queue AuditQueue, metrics *MetricsService, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{writer: writer, queue: queue, metrics: metrics, logger: logger}
}

// Handle is the queue handler persisting one audit job.
func (s *AuditService) Handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		s.logger.Error("unexpected audit payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.writer.CreateAuditLog(ctx, entry)
}

// Log records entry. Errors are logged and swallowed.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) {
	if s == nil || s.writer == nil {
		return
	}
	record := s.build(entry)

	if s.queue != nil && s.queue.Started() {
		err := s.queue.TryEnqueue(jobs.Job{ID: record.ID, Type: JobTypeAudit, Payload: record})
		if err == nil {
			return
		}
		if errors.Is(err, jobs.ErrQueueFull) {
			s.metrics.RecordAuditDrop()
			s.logger.Warn("audit queue full, dropping entry",
				zap.String("action", record.Action),
				zap.String("resource", record.Resource),
			)
			return
		}
		s.logger.Warn("audit enqueue failed, writing inline", zap.Error(err))
	}

	if err := s.writer.CreateAuditLog(ctx, record); err != nil {
		s.logger.Warn("failed to record audit log",
			zap.String("action", record.Action),
			zap.Error(err),
		)
	}
}

func (s *AuditService) build(entry AuditEntry) *models.AuditLog {
	record := &models.AuditLog{
		ID:        uuid.NewString(),
		Action:    entry.Action,
		Resource:  entry.Resource,
		IPAddress: entry.Actor.Meta.IP,
		UserAgent: entry.Actor.Meta.UserAgent,
		RequestID: entry.Actor.Meta.RequestID,
	}
	if entry.Actor.ID != "" {
		actorID := entry.Actor.ID
		record.UserID = &actorID
	}
	if entry.ResourceID != "" {
		resourceID := entry.ResourceID
		record.ResourceID = &resourceID
	}
	if entry.Details != nil {
		payload, err := json.Marshal(entry.Details)
		if err != nil {
			s.logger.Warn("failed to encode audit details", zap.Error(err))
		} else {
			record.Details = string(payload)
		}
	}
	return record
}
