package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	payloadDocID = "doc_id"
	payloadText  = "text"
	payloadSeq   = "seq"
)

// pointNamespace derives stable qdrant point ids from caller document ids.
var pointNamespace = uuid.MustParse("6f3c8a52-1d0e-4c59-9a57-0f4f2b8c7e11")

func pointID(id DocumentID) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(pointNamespace, []byte(id)).String())
}

type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key,omitempty"`
	UseTLS     bool   `yaml:"use_tls,omitempty"`
	Collection string `yaml:"collection"`
}

var _ VectorIndex = (*QdrantIndex)(nil)

// QdrantIndex stores documents in a qdrant collection using cosine distance.
// Inserts from this process are serialized so the existence check and the
// upsert happen as one step.
type QdrantIndex struct {
	writeMu    sync.Mutex
	client     *qdrant.Client
	collection string
	dimension  int
}

func NewQdrantIndex(ctx context.Context, cfg QdrantConfig, dimension int) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}

	idx := &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		dimension:  dimension,
	}
	if err := idx.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		info, err := q.client.GetCollectionInfo(ctx, q.collection)
		if err != nil {
			return fmt.Errorf("get collection %s: %w", q.collection, err)
		}
		return checkCollectionDimension(q.collection, info, q.dimension)
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	return nil
}

// checkCollectionDimension rejects a collection whose single unnamed vector
// is not dimension long.
func checkCollectionDimension(name string, info *qdrant.CollectionInfo, dimension int) error {
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return fmt.Errorf("%w: collection %s has no unnamed vector config", ErrDimensionMismatch, name)
	}
	if got := int(params.GetSize()); got != dimension {
		return fmt.Errorf("%w: collection %s was created with dimension %d, configured %d",
			ErrDimensionMismatch, name, got, dimension)
	}
	return nil
}

func (q *QdrantIndex) Insert(ctx context.Context, doc Document) error {
	if err := checkDimension(doc.Embedding, q.dimension); err != nil {
		return err
	}

	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	exists, err := q.Contains(ctx, doc.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
	}

	seq := time.Now().UnixNano()
	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      pointID(doc.ID),
				Vectors: qdrant.NewVectors(doc.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					payloadDocID: doc.ID.String(),
					payloadText:  doc.Text,
					payloadSeq:   seq,
				}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert point: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Query(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if err := checkDimension(vector, q.dimension); err != nil {
		return nil, err
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, resultFromPayload(p.GetPayload(), p.GetScore()))
	}
	return results, nil
}

func resultFromPayload(payload map[string]*qdrant.Value, score float32) SearchResult {
	return SearchResult{
		ID:    DocumentID(payload[payloadDocID].GetStringValue()),
		Text:  payload[payloadText].GetStringValue(),
		Score: score,
	}
}

func (q *QdrantIndex) Contains(ctx context.Context, id DocumentID) (bool, error) {
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            []*qdrant.PointId{pointID(id)},
	})
	if err != nil {
		return false, fmt.Errorf("get point: %w", err)
	}
	return len(points) > 0, nil
}

func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return int(n), nil
}

func (q *QdrantIndex) Dimension() int {
	return q.dimension
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
