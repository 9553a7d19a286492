package damadam

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// SessionStore keeps the cookies of logged in accounts between runs so that
// a run does not have to log in again every time.
type SessionStore struct {
	db  *badger.DB
	ttl time.Duration
}

type storedCookie struct {
	Name   string
	Value  string
	Path   string
	Domain string
}

// OpenSessionStore opens (or creates) a badger database in dir, if dir is
// empty the store lives in memory.
func OpenSessionStore(dir string, ttl time.Duration) (*SessionStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &SessionStore{db: db, ttl: ttl}, nil
}

func sessionKey(account string) []byte {
	return []byte("session:" + account)
}

// Load returns the stored cookies of an account, or nil if there are none or
// they have expired.
func (s *SessionStore) Load(account string) ([]*http.Cookie, error) {
	var serialized []byte
	err := s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(sessionKey(account))
		if err != nil {
			return err
		}
		serialized, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var stored []storedCookie
	err = gob.NewDecoder(bytes.NewBuffer(serialized)).Decode(&stored)
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	cookies := make([]*http.Cookie, len(stored))
	for i, c := range stored {
		cookies[i] = &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Path:   c.Path,
			Domain: c.Domain,
		}
	}
	return cookies, nil
}

func (s *SessionStore) Save(account string, cookies []*http.Cookie) error {
	stored := make([]storedCookie, len(cookies))
	for i, c := range cookies {
		stored[i] = storedCookie{
			Name:   c.Name,
			Value:  c.Value,
			Path:   c.Path,
			Domain: c.Domain,
		}
	}

	var buff bytes.Buffer
	err := gob.NewEncoder(&buff).Encode(stored)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	return s.db.Update(func(tx *badger.Txn) error {
		entry := badger.NewEntry(sessionKey(account), buff.Bytes())
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return tx.SetEntry(entry)
	})
}

func (s *SessionStore) Delete(account string) error {
	return s.db.Update(func(tx *badger.Txn) error {
		return tx.Delete(sessionKey(account))
	})
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}
