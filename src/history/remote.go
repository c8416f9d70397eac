package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"cadence/src/library"
)

// RemoteStore mirrors the history to the remote history service for
// authenticated sessions. The in-memory list stays the source of truth
// during the session; the service is seeded from once and written to on a
// best-effort basis.
type RemoteStore struct {
	baseURL    string
	authToken  string
	httpClient *http.Client

	lock    sync.Mutex
	entries []library.Track
	seeded  bool
}

var _ Store = (*RemoteStore)(nil)

func NewRemoteStore(baseURL, authToken string) *RemoteStore {
	return &RemoteStore{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Record implements the Store interface.
func (s *RemoteStore) Record(ctx context.Context, track library.Track) {
	s.lock.Lock()
	s.seedLocked(ctx)
	s.entries = push(s.entries, track)
	s.lock.Unlock()

	if err := s.post(ctx, track); err != nil {
		log.Warnf("Could not sync history: %v", err)
	}
}

// Recent implements the Store interface.
func (s *RemoteStore) Recent(ctx context.Context) []library.Track {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.seedLocked(ctx)
	return s.entries
}

// RecentIDs implements the Store interface.
func (s *RemoteStore) RecentIDs(ctx context.Context, n int) []string {
	return recentIDs(s.Recent(ctx), n)
}

// seedLocked fetches the remote history once per session. Failures leave the
// list empty, history remains best-effort.
func (s *RemoteStore) seedLocked(ctx context.Context) {
	if s.seeded {
		return
	}
	s.seeded = true

	entries, err := s.fetch(ctx)
	if err != nil {
		log.Warnf("Could not fetch history: %v", err)
		return
	}
	if len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	s.entries = entries
}

func (s *RemoteStore) fetch(ctx context.Context) ([]library.Track, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/history", nil)
	if err != nil {
		return nil, err
	}
	s.authorize(req)

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history service: status %d", res.StatusCode)
	}

	var data struct {
		Tracks []library.CatalogTrack `json:"tracks"`
	}
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return nil, err
	}
	entries := make([]library.Track, 0, len(data.Tracks))
	for _, raw := range data.Tracks {
		entries = append(entries, raw.Descriptor())
	}
	return entries, nil
}

func (s *RemoteStore) post(ctx context.Context, track library.Track) error {
	body, err := json.Marshal(map[string]interface{}{"track": track})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/history", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	res, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return fmt.Errorf("history service: status %d", res.StatusCode)
	}
	return nil
}

func (s *RemoteStore) authorize(req *http.Request) {
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}
}
