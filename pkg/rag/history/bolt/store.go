package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"review-rag-be/pkg/rag/history"

	"go.etcd.io/bbolt"
)

var bucketTranscripts = []byte("transcripts")

// Store persists transcripts in a single bbolt file, one JSON value per session.
type Store struct {
	db *bbolt.DB
}

var _ history.HistoryStore = (*Store)(nil)

func NewStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketTranscripts); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketTranscripts, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func load(b *bbolt.Bucket, sessionID string) (*history.Transcript, bool, error) {
	data := b.Get([]byte(sessionID))
	if data == nil {
		return &history.Transcript{SessionID: sessionID, Turns: []history.Turn{}}, false, nil
	}
	var tr history.Transcript
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, true, fmt.Errorf("decode transcript %s: %w", sessionID, err)
	}
	return &tr, true, nil
}

func save(b *bbolt.Bucket, tr *history.Transcript) error {
	data, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	return b.Put([]byte(tr.SessionID), data)
}

func (s *Store) GetOrCreate(ctx context.Context, sessionID string) (*history.Transcript, error) {
	if sessionID == "" {
		return nil, history.ErrEmptySessionID
	}

	var out *history.Transcript
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTranscripts)
		tr, exists, err := load(b, sessionID)
		if err != nil {
			return err
		}
		if !exists {
			if err := save(b, tr); err != nil {
				return err
			}
		}
		out = tr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Append(ctx context.Context, sessionID string, turns ...history.Turn) error {
	if sessionID == "" {
		return history.ErrEmptySessionID
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTranscripts)
		tr, _, err := load(b, sessionID)
		if err != nil {
			return err
		}
		tr.Turns = append(tr.Turns, turns...)
		return save(b, tr)
	})
}

// Sessions lists every stored session id.
func (s *Store) Sessions() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTranscripts).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}
