package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"review-rag-be/internal/dto"
	"review-rag-be/internal/pkg/logger"
	"review-rag-be/pkg/rag/ingestion"
	"review-rag-be/pkg/rag/ragerr"
	"review-rag-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"

	jobRetention = 24 * time.Hour
)

var ErrJobNotFound = errors.New("ingestion job not found")

// Ingestor is the part of the ingestion service the jobs drive.
type Ingestor interface {
	GetOrCreateStore(ctx context.Context, loadExisting bool) (vectorstore.Store, error)
	Load(ctx context.Context) (*ingestion.Report, error)
	DataPath() string
}

type IIngestionJobService interface {
	// Enqueue records a job and hands it to the background consumer.
	Enqueue(ctx context.Context) (*dto.IngestJobResponse, error)
	// RunSync loads inline and returns once the store is populated. With
	// loadExisting it only checks the store handle is available.
	RunSync(ctx context.Context, loadExisting bool) (*dto.IngestSyncResponse, error)
	GetJob(ctx context.Context, id string) (*dto.IngestJobResponse, error)
	// Consume starts processing queued jobs until ctx is done. Jobs run one at a time.
	Consume(ctx context.Context) error
}

type ingestionJobService struct {
	ingestor   Ingestor
	publisher  IPublisherService
	subscriber message.Subscriber
	topicName  string
	jobs       *cache.Cache
	mu         sync.Mutex
	events     IEventPublisher
	logger     logger.ILogger
}

func NewIngestionJobService(
	ingestor Ingestor,
	publisher IPublisherService,
	subscriber message.Subscriber,
	topicName string,
	events IEventPublisher,
	log logger.ILogger,
) IIngestionJobService {
	return &ingestionJobService{
		ingestor:   ingestor,
		publisher:  publisher,
		subscriber: subscriber,
		topicName:  topicName,
		jobs:       cache.New(jobRetention, time.Hour),
		events:     events,
		logger:     log,
	}
}

func (s *ingestionJobService) Enqueue(ctx context.Context) (*dto.IngestJobResponse, error) {
	job := &dto.IngestJobResponse{
		JobId:    uuid.NewString(),
		Status:   JobQueued,
		DataPath: s.ingestor.DataPath(),
		QueuedAt: time.Now(),
	}
	s.jobs.SetDefault(job.JobId, job)

	payload, err := json.Marshal(dto.IngestJobMessage{JobId: job.JobId})
	if err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, payload); err != nil {
		s.jobs.Delete(job.JobId)
		return nil, ragerr.New(ragerr.KindIngestion, "ingestion.Enqueue", err)
	}

	s.logger.Info("INGEST", "Ingestion job queued", map[string]interface{}{"job_id": job.JobId})
	return s.snapshot(job), nil
}

func (s *ingestionJobService) RunSync(ctx context.Context, loadExisting bool) (*dto.IngestSyncResponse, error) {
	if loadExisting {
		if _, err := s.ingestor.GetOrCreateStore(ctx, true); err != nil {
			return nil, err
		}
		return &dto.IngestSyncResponse{DataPath: s.ingestor.DataPath(), LoadedExisting: true}, nil
	}

	report, err := s.ingestor.Load(ctx)
	if err != nil {
		s.events.PublishIngestionFailed(ctx, "", s.ingestor.DataPath(), err)
		return nil, err
	}
	s.events.PublishIngestionCompleted(ctx, "", report.DataPath, report.Documents, report.Duration)
	return &dto.IngestSyncResponse{
		DataPath:   report.DataPath,
		Documents:  report.Documents,
		DurationMs: report.Duration.Milliseconds(),
	}, nil
}

func (s *ingestionJobService) GetJob(ctx context.Context, id string) (*dto.IngestJobResponse, error) {
	v, ok := s.jobs.Get(id)
	if !ok {
		return nil, ErrJobNotFound
	}
	return s.snapshot(v.(*dto.IngestJobResponse)), nil
}

func (s *ingestionJobService) Consume(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (s *ingestionJobService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.IngestJobMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.logger.Error("INGEST", "Failed to unmarshal job message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // never becomes valid
		return
	}

	v, ok := s.jobs.Get(payload.JobId)
	if !ok {
		s.logger.Warn("INGEST", "Job expired before it ran", map[string]interface{}{"job_id": payload.JobId})
		msg.Ack()
		return
	}
	job := v.(*dto.IngestJobResponse)

	s.update(job, func(j *dto.IngestJobResponse) {
		now := time.Now()
		j.Status = JobRunning
		j.StartedAt = &now
	})
	s.logger.Info("INGEST", "Ingestion job started", map[string]interface{}{"job_id": job.JobId})

	report, err := s.ingestor.Load(ctx)
	finished := time.Now()
	if err != nil {
		var ie *ragerr.IngestionError
		s.update(job, func(j *dto.IngestJobResponse) {
			j.Status = JobFailed
			j.Error = err.Error()
			j.ErrorKind = string(ragerr.KindOf(err))
			if errors.As(err, &ie) {
				j.Accepted = ie.Accepted
			}
			j.FinishedAt = &finished
		})
		s.logger.Error("INGEST", "Ingestion job failed", map[string]interface{}{
			"job_id": job.JobId,
			"error":  err.Error(),
		})
		s.events.PublishIngestionFailed(ctx, job.JobId, job.DataPath, err)
		// failures are recorded on the job; redelivery would double-insert what was accepted
		msg.Ack()
		return
	}

	s.update(job, func(j *dto.IngestJobResponse) {
		j.Status = JobSucceeded
		j.Documents = report.Documents
		j.Accepted = report.Documents
		j.FinishedAt = &finished
	})
	s.logger.Info("INGEST", "Ingestion job finished", map[string]interface{}{
		"job_id":    job.JobId,
		"documents": report.Documents,
	})
	s.events.PublishIngestionCompleted(ctx, job.JobId, report.DataPath, report.Documents, report.Duration)
	msg.Ack()
}

func (s *ingestionJobService) update(job *dto.IngestJobResponse, fn func(j *dto.IngestJobResponse)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(job)
}

func (s *ingestionJobService) snapshot(job *dto.IngestJobResponse) *dto.IngestJobResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	return &cp
}
