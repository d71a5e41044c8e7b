package sessions

import (
	"encoding/binary"
	"errors"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const sessionPrefix = "session/"

const fixedValueLen = 28

var ErrSessionNotFound = errors.New("session not found")

// Session is one load/unload run of the module. EndAt stays zero while the
// run is still open.
type Session struct {
	Id          string
	StartAt     int64
	EndAt       int64
	Period      int64
	TotalWrites uint32
	Filename    string
}

// Store keeps session records in an embedded badger db.
type Store struct {
	db *badger.DB
}

func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// OpenSession records the start of a run and returns its id.
func (s *Store) OpenSession(filename string, period int64) (string, error) {
	id := uuid.NewString()
	info := &Session{
		Id:       id,
		StartAt:  time.Now().UnixMilli(),
		Period:   period,
		Filename: filename,
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(id), toSessionValue(info))
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// CloseSession stamps the end of a run with its final write count.
func (s *Store) CloseSession(id string, totalWrites uint32) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		var value []byte
		if value, err = item.ValueCopy(nil); err != nil {
			return err
		}
		info := fromSessionValue(id, value)
		info.EndAt = time.Now().UnixMilli()
		info.TotalWrites = totalWrites
		return txn.Set(sessionKey(id), toSessionValue(info))
	})
}

// Get returns one session by id.
func (s *Store) Get(id string) (*Session, error) {
	var info *Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			info = fromSessionValue(id, v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// List returns all recorded sessions, oldest first.
func (s *Store) List() ([]*Session, error) {
	var all []*Session
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(sessionPrefix):])
			err := item.Value(func(v []byte) error {
				all = append(all, fromSessionValue(id, v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].StartAt < all[j].StartAt
	})
	return all, nil
}

func sessionKey(id string) []byte {
	return []byte(sessionPrefix + id)
}

func toSessionValue(info *Session) []byte {
	buf := make([]byte, fixedValueLen+len(info.Filename))
	binary.LittleEndian.PutUint64(buf, uint64(info.StartAt))
	binary.LittleEndian.PutUint64(buf[8:], uint64(info.EndAt))
	binary.LittleEndian.PutUint64(buf[16:], uint64(info.Period))
	binary.LittleEndian.PutUint32(buf[24:], info.TotalWrites)
	copy(buf[fixedValueLen:], info.Filename)
	return buf
}

func fromSessionValue(id string, value []byte) *Session {
	if len(value) < fixedValueLen {
		return &Session{Id: id}
	}
	return &Session{
		Id:          id,
		StartAt:     int64(binary.LittleEndian.Uint64(value)),
		EndAt:       int64(binary.LittleEndian.Uint64(value[8:])),
		Period:      int64(binary.LittleEndian.Uint64(value[16:])),
		TotalWrites: binary.LittleEndian.Uint32(value[24:]),
		Filename:    string(value[fixedValueLen:]),
	}
}
