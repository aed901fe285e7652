package ingestion

import (
	"context"
	"errors"
	"strings"
	"time"

	"review-rag-be/pkg/rag/converter"
	"review-rag-be/pkg/rag/document"
	"review-rag-be/pkg/rag/ragerr"
	"review-rag-be/pkg/vectorstore"
)

const logModule = "Ingestion"

type Logger interface {
	Info(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}

// Report describes one completed load.
type Report struct {
	DataPath  string        `json:"data_path"`
	Documents int           `json:"documents"`
	Duration  time.Duration `json:"duration"`
}

// LoadFunc turns a data path into documents. Defaults to the CSV converter.
type LoadFunc func(path string) ([]document.Document, error)

// Service owns the vector store handle and knows how to populate it.
type Service struct {
	store    *vectorstore.EmbeddingStore
	dataPath string
	load     LoadFunc
	logger   Logger
	progress func(done, total int)
	onLoaded func(ctx context.Context, r Report)
}

type Option func(*Service)

func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProgress is called after each upserted batch.
func WithProgress(fn func(done, total int)) Option {
	return func(s *Service) { s.progress = fn }
}

// WithLoadedHook runs after a successful load, e.g. to publish an event.
func WithLoadedHook(fn func(ctx context.Context, r Report)) Option {
	return func(s *Service) { s.onLoaded = fn }
}

func WithLoader(fn LoadFunc) Option {
	return func(s *Service) {
		if fn != nil {
			s.load = fn
		}
	}
}

func NewService(store *vectorstore.EmbeddingStore, dataPath string, opts ...Option) *Service {
	s := &Service{
		store:    store,
		dataPath: dataPath,
		load:     loadPath,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DataPath is the file or glob pattern the service loads from.
func (s *Service) DataPath() string {
	return s.dataPath
}

// GetOrCreateStore returns the store handle. With loadExisting it touches
// nothing; otherwise it converts the data file, embeds every review and
// upserts it before returning.
func (s *Service) GetOrCreateStore(ctx context.Context, loadExisting bool) (vectorstore.Store, error) {
	if loadExisting {
		s.logger.Info(logModule, "Using existing collection", nil)
		return s.store, nil
	}
	if _, err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s.store, nil
}

// Load runs one full ingestion pass. Running it twice stores the documents twice.
func (s *Service) Load(ctx context.Context) (*Report, error) {
	start := time.Now()

	docs, err := s.load(s.dataPath)
	if err != nil {
		s.logger.Error(logModule, "Failed to read review data", map[string]interface{}{
			"path":  s.dataPath,
			"error": err.Error(),
		})
		return nil, ragerr.Classify(ragerr.KindDataFormat, "ingestion.Load", err)
	}

	s.logger.Info(logModule, "Loading reviews", map[string]interface{}{
		"path":      s.dataPath,
		"documents": len(docs),
	})

	store := s.store
	if s.progress != nil {
		store = store.WithOptions(vectorstore.WithProgress(s.progress))
	}
	if err := store.Upsert(ctx, docs); err != nil {
		details := map[string]interface{}{
			"kind":  string(ragerr.KindOf(err)),
			"error": err.Error(),
		}
		var ie *ragerr.IngestionError
		if errors.As(err, &ie) {
			details["accepted"] = ie.Accepted
			details["total"] = ie.Total
		}
		s.logger.Error(logModule, "Upsert failed", details)
		return nil, err
	}

	report := Report{
		DataPath:  s.dataPath,
		Documents: len(docs),
		Duration:  time.Since(start),
	}
	s.logger.Info(logModule, "Reviews loaded", map[string]interface{}{
		"documents":   report.Documents,
		"duration_ms": report.Duration.Milliseconds(),
	})
	if s.onLoaded != nil {
		s.onLoaded(ctx, report)
	}
	return &report, nil
}

func loadPath(path string) ([]document.Document, error) {
	if strings.ContainsAny(path, "*?[{") {
		return converter.ConvertGlob(path)
	}
	return converter.Convert(path)
}
