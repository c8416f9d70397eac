package history

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"cadence/src/library"
	"cadence/src/util"
)

// LocalStore persists the history to a JSON file in the storage directory.
// It serves anonymous sessions.
type LocalStore struct {
	lock  sync.Mutex
	store *util.PersistentStorage[[]library.Track]
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(filename string) (*LocalStore, error) {
	store, err := util.NewPersistentStorage(filename, []library.Track{})
	if err != nil {
		return nil, err
	}
	return &LocalStore{store: store}, nil
}

// Record implements the Store interface.
func (s *LocalStore) Record(ctx context.Context, track library.Track) {
	s.lock.Lock()
	defer s.lock.Unlock()
	entries := push(s.store.Value(), track)
	if err := s.store.SetValue(entries); err != nil {
		log.Warnf("Could not persist history: %v", err)
	}
}

// Recent implements the Store interface.
func (s *LocalStore) Recent(ctx context.Context) []library.Track {
	return s.store.Value()
}

// RecentIDs implements the Store interface.
func (s *LocalStore) RecentIDs(ctx context.Context, n int) []string {
	return recentIDs(s.store.Value(), n)
}
