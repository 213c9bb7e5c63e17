package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/career-mentor/mentor-web-ui/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the session store on top of a BoltDB file. Each session is a JSON value in the
// sessions bucket keyed by its id. Sessions idle for longer than the TTL are treated as gone and purged
// when the database is opened.
type BoltDB struct {
	db  *bolt.DB
	ttl time.Duration
}

var sessionsBucket = []byte("sessions")

// NewBoltDB opens the database at path, creating it with 0600 permissions if needed, ensures the sessions
// bucket exists and drops expired sessions left from a previous run.
func NewBoltDB(path string, ttl time.Duration) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return BoltDB{}, fmt.Errorf("failed to create sessions bucket: %w", err)
	}

	b := BoltDB{db: db, ttl: ttl}
	if err := b.Purge(context.Background()); err != nil {
		_ = db.Close()
		return BoltDB{}, err
	}
	return b, nil
}

// Session retrieves the session with the given id. A fresh session is returned when the id is unknown or
// the stored session has expired.
func (b BoltDB) Session(_ context.Context, id string) (models.Session, error) {
	var session models.Session
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(sessionsBucket)
		if bk == nil {
			return nil
		}

		v := bk.Get([]byte(id))
		if v == nil {
			return nil
		}
		decoded, err := decodeSession(v)
		if err != nil {
			return err
		}
		session = decoded
		found = true
		return nil
	})
	if err != nil {
		return models.Session{}, err
	}

	if !found || b.expired(session) {
		return models.NewSession(id), nil
	}
	return session, nil
}

// SaveSession stores the session, overwriting any previous value under the same id.
func (b BoltDB) SaveSession(_ context.Context, session models.Session) error {
	session.UpdatedAt = time.Now()

	v, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(sessionsBucket)
		if bk == nil {
			return fmt.Errorf("sessions bucket is missing")
		}
		return bk.Put([]byte(session.ID), v)
	})
}

// DeleteSession removes the session. Deleting an unknown id is not an error.
func (b BoltDB) DeleteSession(_ context.Context, id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(sessionsBucket)
		if bk == nil {
			return nil
		}
		return bk.Delete([]byte(id))
	})
}

// Purge deletes every expired session.
func (b BoltDB) Purge(_ context.Context) error {
	if b.ttl <= 0 {
		return nil
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(sessionsBucket)
		if bk == nil {
			return nil
		}

		var stale [][]byte
		err := bk.ForEach(func(k, v []byte) error {
			// Undecodable entries are dropped along with the expired ones.
			session, err := decodeSession(v)
			if err != nil || b.expired(session) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to scan sessions: %w", err)
		}

		for _, k := range stale {
			if err := bk.Delete(k); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}
		}
		return nil
	})
}

// Close closes the underlying database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

func (b BoltDB) expired(s models.Session) bool {
	return b.ttl > 0 && time.Since(s.UpdatedAt) > b.ttl
}
