package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"review-rag-be/pkg/rag/document"
	"review-rag-be/pkg/vectorstore"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	payloadContent = "content"
	defaultPort    = 6334
)

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant gRPC address (e.g., "https://example.qdrant.io:6334").
	URL string
	// APIKey is optional API key for authentication.
	APIKey string
	// Namespace, when set, prefixes the collection name.
	Namespace  string
	Collection string
}

// Index implements vectorstore.Index for Qdrant.
type Index struct {
	client     *qdrant.Client
	collection string

	ensureMu sync.Mutex
	ensured  bool
}

var _ vectorstore.Index = (*Index)(nil)

type endpoint struct {
	host   string
	port   int
	useTLS bool
}

func parseEndpoint(raw string) (endpoint, error) {
	if raw == "" {
		return endpoint{}, fmt.Errorf("qdrant url is required")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return endpoint{}, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	ep := endpoint{host: u.Hostname(), port: defaultPort, useTLS: u.Scheme == "https"}
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return endpoint{}, fmt.Errorf("invalid port: %w", err)
		}
		ep.port = p
	}
	return ep, nil
}

func collectionName(namespace, collection string) string {
	if namespace == "" {
		return collection
	}
	return namespace + "_" + collection
}

func NewIndex(cfg Config) (*Index, error) {
	ep, err := parseEndpoint(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   ep.host,
		Port:   ep.port,
		APIKey: cfg.APIKey,
		UseTLS: ep.useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Index{
		client:     client,
		collection: collectionName(cfg.Namespace, cfg.Collection),
	}, nil
}

func (ix *Index) EnsureCollection(ctx context.Context, dim int) error {
	ix.ensureMu.Lock()
	defer ix.ensureMu.Unlock()
	if ix.ensured {
		return nil
	}

	exists, err := ix.client.CollectionExists(ctx, ix.collection)
	if err != nil {
		return wrapRPCError("collection exists", err)
	}
	if !exists {
		err = ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: ix.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return wrapRPCError("create collection", err)
		}
	}
	ix.ensured = true
	return nil
}

func (ix *Index) Upsert(ctx context.Context, records []vectorstore.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		payload := map[string]any{payloadContent: r.Document.Content}
		for k, v := range r.Document.Metadata {
			payload[k] = v
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(r.ID),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	wait := true
	res, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ix.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return 0, wrapRPCError("upsert", err)
	}
	if res != nil && res.Status != qdrant.UpdateStatus_Completed && res.Status != qdrant.UpdateStatus_Acknowledged {
		return 0, fmt.Errorf("upsert finished with status %s", res.Status)
	}
	return len(points), nil
}

func (ix *Index) Query(ctx context.Context, vector []float32, k int) ([]vectorstore.ScoredDocument, error) {
	limit := uint64(k)
	points, err := ix.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ix.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// nothing ingested yet
			return []vectorstore.ScoredDocument{}, nil
		}
		return nil, wrapRPCError("query", err)
	}

	hits := make([]vectorstore.ScoredDocument, 0, len(points))
	for _, p := range points {
		hits = append(hits, vectorstore.ScoredDocument{
			Document: fromPayload(p.Payload),
			Score:    p.Score,
		})
	}
	return hits, nil
}

func (ix *Index) Count(ctx context.Context) (int, error) {
	exact := true
	n, err := ix.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: ix.collection,
		Exact:          &exact,
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, wrapRPCError("count", err)
	}
	return int(n), nil
}

func (ix *Index) DeleteCollection(ctx context.Context) error {
	return wrapRPCError("delete collection", ix.client.DeleteCollection(ctx, ix.collection))
}

func (ix *Index) Close() error {
	return ix.client.Close()
}

func fromPayload(payload map[string]*qdrant.Value) document.Document {
	doc := document.Document{Metadata: map[string]string{}}
	for k, v := range payload {
		if k == payloadContent {
			doc.Content = v.GetStringValue()
			continue
		}
		doc.Metadata[k] = v.GetStringValue()
	}
	return doc
}

// wrapRPCError tags Unavailable and DeadlineExceeded gRPC codes with vectorstore.ErrUnavailable.
func wrapRPCError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("qdrant %s: %w", op, err)
	}
	switch status.Code(err) {
	case codes.Unavailable:
		return fmt.Errorf("qdrant %s: %w: %w", op, vectorstore.ErrUnavailable, err)
	case codes.DeadlineExceeded:
		return fmt.Errorf("qdrant %s: %w: %w", op, context.DeadlineExceeded, err)
	}
	return fmt.Errorf("qdrant %s: %w", op, err)
}
