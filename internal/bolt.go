package internal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const IndexFilename = "index.db"

var (
	documentsBucket = []byte("documents")
	metaBucket      = []byte("meta")
	dimensionKey    = []byte("dimension")
)

var _ VectorIndex = (*BoltIndex)(nil)

// BoltIndex persists documents in a bbolt file and answers queries with an
// exact cosine scan over an in-memory copy loaded at open.
type BoltIndex struct {
	mu        sync.RWMutex
	db        *bbolt.DB
	dimension int
	docs      []Document
	ids       map[DocumentID]struct{}
	path      string
}

func OpenBoltIndex(path string, dimension int) (*BoltIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrDimensionMismatch, dimension)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	idx := &BoltIndex{
		db:        db,
		dimension: dimension,
		ids:       make(map[DocumentID]struct{}),
		path:      path,
	}

	if err := idx.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := idx.load(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return idx, nil
}

func (b *BoltIndex) init() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(documentsBucket); err != nil {
			return fmt.Errorf("create documents bucket: %w", err)
		}
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}

		stored := meta.Get(dimensionKey)
		if stored == nil {
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(b.dimension))
			return meta.Put(dimensionKey, buf)
		}

		if got := int(binary.BigEndian.Uint64(stored)); got != b.dimension {
			return fmt.Errorf("%w: index %s was created with dimension %d, configured %d",
				ErrDimensionMismatch, b.path, got, b.dimension)
		}
		return nil
	})
}

func (b *BoltIndex) load() error {
	var docs []Document
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(documentsBucket).ForEach(func(_, v []byte) error {
			var doc Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("decode document: %w", err)
			}
			docs = append(docs, doc)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })

	b.docs = docs
	for _, d := range docs {
		b.ids[d.ID] = struct{}{}
	}
	return nil
}

func (b *BoltIndex) Insert(_ context.Context, doc Document) error {
	if err := checkDimension(doc.Embedding, b.dimension); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return ErrIndexClosed
	}
	if _, exists := b.ids[doc.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
	}

	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(documentsBucket)
		key := []byte(doc.ID)
		if bucket.Get(key) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID)
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		doc.Seq = seq
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now().UTC()
		}

		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		return bucket.Put(key, data)
	})
	if err != nil {
		return err
	}

	b.docs = append(b.docs, doc)
	b.ids[doc.ID] = struct{}{}
	return nil
}

func (b *BoltIndex) Query(_ context.Context, vector []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if err := checkDimension(vector, b.dimension); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return nil, ErrIndexClosed
	}
	return rankDocuments(b.docs, vector, k), nil
}

func (b *BoltIndex) Contains(_ context.Context, id DocumentID) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.ids[id]
	return exists, nil
}

// Get returns the stored document for id.
func (b *BoltIndex) Get(_ context.Context, id DocumentID) (*Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return nil, ErrIndexClosed
	}

	var doc *Document
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(documentsBucket).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("document %s not found", id)
		}
		doc = &Document{}
		return json.Unmarshal(v, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (b *BoltIndex) Count(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.docs), nil
}

func (b *BoltIndex) Dimension() int {
	return b.dimension
}

func (b *BoltIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}
