package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Payload keys written with every point.
const (
	payloadText   = "text"
	payloadSource = "source"
	payloadSeq    = "seq"
	payloadIns    = "ins"
)

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	client *qdrant.Client
	cfg    QdrantConfig

	mu sync.RWMutex
	// metrics remembers each ensured collection's metric for score normalisation.
	metrics map[string]Metric
}

// NewQdrantStore connects to Qdrant. No collection is created until
// EnsureCollection is called.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, E(KindUpstreamUnavailable, "qdrant.connect", "", err)
	}

	return &QdrantStore{client: client, cfg: cfg, metrics: make(map[string]Metric)}, nil
}

// Client exposes the underlying gRPC client for readiness probes.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// EnsureCollection implements VectorStore.
func (s *QdrantStore) EnsureCollection(ctx context.Context, spec CollectionSpec) error {
	distance, err := qdrantDistance(spec.Metric)
	if err != nil {
		return err
	}

	exists, err := s.client.CollectionExists(ctx, spec.Name)
	if err != nil {
		return classify("qdrant.collection_exists", err)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: spec.Name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(spec.Dimension),
				Distance: distance,
			}),
		})
		// Another process may have created it between the check and the create.
		if err != nil && !isAlreadyExists(err) {
			return classify("qdrant.create_collection", err)
		}
	}

	info, err := s.client.GetCollectionInfo(ctx, spec.Name)
	if err != nil {
		return classify("qdrant.collection_info", err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params != nil && (params.GetSize() != uint64(spec.Dimension) || params.GetDistance() != distance) {
		return E(KindConfigConflict, "qdrant.ensure_collection", "",
			fmt.Errorf("collection %q exists with size=%d distance=%s, requested size=%d distance=%s",
				spec.Name, params.GetSize(), params.GetDistance(), spec.Dimension, distance))
	}

	s.mu.Lock()
	s.metrics[spec.Name] = spec.Metric
	s.mu.Unlock()
	return nil
}

// Upsert implements VectorStore. The call waits for Qdrant to apply the
// write so a following Count or Search observes it. A replaced chunk keeps
// its original insertion stamp, and so its place among equal scores.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	prior, err := s.insertionStamps(ctx, collection, records)
	if err != nil {
		return 0, err
	}
	stamps := stampInsertions(records, prior, time.Now().UnixNano())

	points := make([]*qdrant.PointStruct, 0, len(records))
	for i, r := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(r.Chunk.ID),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadText:   r.Chunk.Text,
				payloadSource: r.Chunk.Source,
				payloadSeq:    int64(r.Chunk.Seq),
				payloadIns:    stamps[i],
			}),
		})
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return 0, classify("qdrant.upsert", err)
	}
	return len(records), nil
}

// insertionStamps returns the stored insertion stamp of every record that
// already exists in collection, keyed by chunk ID.
func (s *QdrantStore) insertionStamps(ctx context.Context, collection string, records []Record) (map[string]int64, error) {
	ids := make([]*qdrant.PointId, len(records))
	for i, r := range records {
		ids[i] = qdrant.NewIDUUID(r.Chunk.ID)
	}
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayloadInclude(payloadIns),
	})
	if err != nil {
		return nil, classify("qdrant.get", err)
	}
	prior := make(map[string]int64, len(points))
	for _, p := range points {
		if v, ok := p.GetPayload()[payloadIns]; ok {
			prior[p.GetId().GetUuid()] = v.GetIntegerValue()
		}
	}
	return prior, nil
}

// stampInsertions assigns each record its insertion stamp: the prior one
// for a chunk already stored, the first one in the batch for a repeated ID,
// and base plus the batch position otherwise.
func stampInsertions(records []Record, prior map[string]int64, base int64) []int64 {
	stamps := make([]int64, len(records))
	seen := make(map[string]int64, len(records))
	for i, r := range records {
		if ins, ok := prior[r.Chunk.ID]; ok {
			stamps[i] = ins
			continue
		}
		if ins, ok := seen[r.Chunk.ID]; ok {
			stamps[i] = ins
			continue
		}
		stamps[i] = base + int64(i)
		seen[r.Chunk.ID] = stamps[i]
	}
	return stamps
}

// Search implements VectorStore. Results are re-sorted so that equal scores
// keep insertion order.
func (s *QdrantStore) Search(ctx context.Context, collection string, vec []float32, k int) ([]Result, error) {
	limit := uint64(k)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, classify("qdrant.search", err)
	}

	s.mu.RLock()
	negate := s.metrics[collection] == MetricEuclid
	s.mu.RUnlock()
	type scored struct {
		res Result
		ins int64
	}
	hits := make([]scored, 0, len(points))
	for _, p := range points {
		h := scored{res: Result{Score: p.GetScore()}}
		if negate {
			h.res.Score = -h.res.Score
		}
		h.res.Chunk.ID = p.GetId().GetUuid()
		if pl := p.GetPayload(); pl != nil {
			h.res.Chunk.Text = pl[payloadText].GetStringValue()
			h.res.Chunk.Source = pl[payloadSource].GetStringValue()
			h.res.Chunk.Seq = int(pl[payloadSeq].GetIntegerValue())
			h.ins = pl[payloadIns].GetIntegerValue()
		}
		hits = append(hits, h)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].res.Score != hits[j].res.Score {
			return hits[i].res.Score > hits[j].res.Score
		}
		return hits[i].ins < hits[j].ins
	})

	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = h.res
	}
	return out, nil
}

// Count implements VectorStore.
func (s *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, classify("qdrant.count", err)
	}
	return int(n), nil
}

// DropCollection implements VectorStore.
func (s *QdrantStore) DropCollection(ctx context.Context, collection string) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return classify("qdrant.collection_exists", err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		return classify("qdrant.drop_collection", err)
	}
	s.mu.Lock()
	delete(s.metrics, collection)
	s.mu.Unlock()
	return nil
}

// Ping calls the Qdrant HealthCheck RPC.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return classify("qdrant.health", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func qdrantDistance(m Metric) (qdrant.Distance, error) {
	switch m {
	case MetricCosine, "":
		return qdrant.Distance_Cosine, nil
	case MetricDot:
		return qdrant.Distance_Dot, nil
	case MetricEuclid:
		return qdrant.Distance_Euclid, nil
	default:
		return 0, E(KindValidation, "qdrant.distance", fmt.Sprintf("unsupported metric %q", m), nil)
	}
}

func isAlreadyExists(err error) bool {
	if status.Code(err) == codes.AlreadyExists {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// classify maps gRPC transport failures onto the error taxonomy.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), status.Code(err) == codes.DeadlineExceeded:
		return E(KindUpstreamTimeout, op, "", err)
	case status.Code(err) == codes.Unavailable:
		return E(KindUpstreamUnavailable, op, "", err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
