package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/brosis-admin-api/internal/models"
	"github.com/noah-isme/brosis-admin-api/pkg/jobs"
)

type auditWriterStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
	err  error
}

func (s *auditWriterStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.logs = append(s.logs, log)
	return nil
}

func (s *auditWriterStub) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.logs))
	for i, log := range s.logs {
		out[i] = log.Action
	}
	return out
}

type auditQueueStub struct {
	started bool
	err     error
	jobs    []jobs.Job
}

func (q *auditQueueStub) Started() bool { return q.started }

func (q *auditQueueStub) TryEnqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func TestAuditServiceWritesInlineWithoutQueue(t *testing.T) {
	writer := &auditWriterStub{}
	svc := NewAuditService(writer, nil, nil, nil)

	svc.Log(context.Background(), AuditEntry{
		Actor:      BulkActor{ID: "admin-1", Meta: models.RequestMeta{IP: "10.0.0.1", UserAgent: "curl", RequestID: "req-0001-abcd"}},
		Action:     models.AuditActionDeleteUserInBulk,
		Resource:   "user",
		ResourceID: "u-1",
		Details:    map[string]string{"username": "bob"},
	})

	require.Len(t, writer.logs, 1)
	entry := writer.logs[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "admin-1", *entry.UserID)
	assert.Equal(t, "u-1", *entry.ResourceID)
	assert.Equal(t, `{"username":"bob"}`, entry.Details)
	assert.Equal(t, "10.0.0.1", entry.IPAddress)
	assert.Equal(t, "req-0001-abcd", entry.RequestID)
}

func TestAuditServiceSwallowsWriterErrors(t *testing.T) {
	writer := &auditWriterStub{err: errors.New("insert failed")}
	svc := NewAuditService(writer, nil, nil, nil)

	assert.NotPanics(t, func() {
		svc.Log(context.Background(), AuditEntry{Action: models.AuditActionLogin, Resource: "auth"})
	})

	var nilService *AuditService
	assert.NotPanics(t, func() {
		nilService.Log(context.Background(), AuditEntry{Action: models.AuditActionLogin})
	})
}

func TestAuditServiceEnqueuesWhenQueueRuns(t *testing.T) {
	writer := &auditWriterStub{}
	queue := &auditQueueStub{started: true}
	svc := NewAuditService(writer, queue, nil, nil)

	svc.Log(context.Background(), AuditEntry{Action: models.AuditActionRootProtection, Resource: "user"})

	require.Len(t, queue.jobs, 1)
	assert.Empty(t, writer.logs)
	assert.Equal(t, JobTypeAudit, queue.jobs[0].Type)

	require.NoError(t, svc.Handle(context.Background(), queue.jobs[0]))
	assert.Equal(t, []string{models.AuditActionRootProtection}, writer.actions())
}

func TestAuditServiceDropsWhenQueueIsFull(t *testing.T) {
	writer := &auditWriterStub{}
	queue := &auditQueueStub{started: true, err: jobs.ErrQueueFull}
	metrics := NewMetricsService()
	svc := NewAuditService(writer, queue, metrics, nil)

	svc.Log(context.Background(), AuditEntry{Action: models.AuditActionLogin})

	assert.Empty(t, writer.logs)
	assert.Equal(t, uint64(1), metrics.Snapshot().AuditEntriesDropped)
}

func TestAuditServiceFallsBackWhenQueueStopped(t *testing.T) {
	writer := &auditWriterStub{}
	queue := &auditQueueStub{started: false}
	svc := NewAuditService(writer, queue, nil, nil)

	svc.Log(context.Background(), AuditEntry{Action: models.AuditActionLogin})

	assert.Empty(t, queue.jobs)
	assert.Len(t, writer.logs, 1)
}
