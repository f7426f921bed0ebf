package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"bigbrain/internal/contextutil"
)

const (
	// defaultGRPCPort is used when the configured URL carries no port.
	defaultGRPCPort = 6334

	// qdrantUpsertBatch caps the number of points sent in one Upsert call.
	qdrantUpsertBatch = 256
)

// QdrantStore is the VectorStore backed by a Qdrant server over gRPC.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore connects to the Qdrant server at urlStr, given as the HTTP
// address (for example "http://localhost:6333"). The client talks gRPC on the
// next port up.
func NewQdrantStore(urlStr string) (*QdrantStore, error) {
	host, port, err := grpcAddress(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant at %s:%d: %w", host, port, err)
	}
	return &QdrantStore{client: client}, nil
}

func grpcAddress(urlStr string) (string, int, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL %q: %w", urlStr, err)
	}

	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	if p := u.Port(); p != "" {
		if httpPort, err := strconv.Atoi(p); err == nil {
			return host, httpPort + 1, nil
		}
	}
	return host, defaultGRPCPort, nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// ResetCollection recreates collection empty, sized for vectorSize-dimensional
// vectors under cosine distance.
func (s *QdrantStore) ResetCollection(ctx context.Context, collection string, vectorSize int) error {
	if vectorSize <= 0 {
		return fmt.Errorf("vector size must be greater than 0, got %d", vectorSize)
	}
	logger := contextutil.LoggerFromContext(ctx)

	if err := s.DropCollection(ctx, collection); err != nil {
		return err
	}

	if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}

	logger.InfoContext(ctx, "index collection ready", "collection", collection, "dimension", vectorSize)
	return nil
}

// DropCollection deletes collection when the server has it.
func (s *QdrantStore) DropCollection(ctx context.Context, collection string) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to look up collection %s: %w", collection, err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", collection, err)
	}
	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "dropped index collection", "collection", collection)
	return nil
}

// Upsert writes points in batches of at most qdrantUpsertBatch, waiting for
// each batch to be applied before sending the next.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	for start := 0; start < len(points); start += qdrantUpsertBatch {
		end := min(start+qdrantUpsertBatch, len(points))
		batch := make([]*qdrant.PointStruct, end-start)
		for i, p := range points[start:end] {
			batch[i] = toPointStruct(p)
		}

		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         batch,
		}); err != nil {
			return fmt.Errorf("failed to upsert %d points into %s: %w", len(batch), collection, err)
		}
	}

	if len(points) > 0 {
		contextutil.LoggerFromContext(ctx).DebugContext(ctx, "upserted chunk vectors", "collection", collection, "count", len(points))
	}
	return nil
}

func toPointStruct(p Point) *qdrant.PointStruct {
	ps := &qdrant.PointStruct{
		Id:      qdrant.NewID(p.ID),
		Vectors: qdrant.NewVectors(p.Vec...),
	}
	if len(p.Meta) > 0 {
		ps.Payload = qdrant.NewValueMap(p.Meta)
	}
	return ps
}

// Search returns up to k chunk vectors nearest to query, best first.
// Hits without a UUID point ID are not chunk points and are skipped.
func (s *QdrantStore) Search(ctx context.Context, collection string, query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0, got %d", k)
	}

	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		id := hit.GetId().GetUuid()
		if id == "" {
			continue
		}
		results = append(results, SearchResult{
			PointID: id,
			Score:   hit.GetScore(),
			Meta:    decodePayload(hit.GetPayload()),
		})
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "vector search", "collection", collection, "k", k, "hits", len(results))
	return results, nil
}

// decodePayload maps a point payload back to the scalar metadata written by
// Upsert. Nested values are not produced by the indexer and are dropped.
func decodePayload(payload map[string]*qdrant.Value) map[string]any {
	meta := make(map[string]any, len(payload))
	for key, v := range payload {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			meta[key] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			meta[key] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			meta[key] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			meta[key] = kind.BoolValue
		}
	}
	return meta
}
