package proxy

import (
	"sync"

	"github.com/relayd/relayd/pkg/model"
)

// Stats accumulates request counters for one proxy instance. Always
// acquired after State, per the global lock-ordering contract.
type Stats struct {
	mu           sync.RWMutex
	total        uint64
	endpoint     map[string]uint64
	user         map[string]uint64
	userEndpoint map[string]model.UserEndpointStats
}

// NewStats returns an empty Stats.
func NewStats() *Stats {
	return &Stats{
		endpoint:     make(map[string]uint64),
		user:         make(map[string]uint64),
		userEndpoint: make(map[string]model.UserEndpointStats),
	}
}

// Inc records one forwarded request against path and username. Endpoints
// and usernames are inserted with count 1 if absent.
func (s *Stats) Inc(path, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.endpoint[path]++
	s.user[username]++
	perEndpoint, ok := s.userEndpoint[username]
	if !ok {
		perEndpoint = make(model.UserEndpointStats)
		s.userEndpoint[username] = perEndpoint
	}
	perEndpoint[path]++
}

// ResetEndpoint clears the counter for one endpoint (called when a service
// is removed and its endpoint string could be reused by a later service).
func (s *Stats) ResetEndpoint(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.endpoint, path)
}

// ResetUser clears every counter for one username (called when a user is
// removed).
func (s *Stats) ResetUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.user, username)
	delete(s.userEndpoint, username)
}

// UserStats returns the stored counters for username, or ok=false if the
// user has never made a request.
func (s *Stats) UserStats(username string) (model.UserStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total, ok := s.user[username]
	if !ok {
		return model.UserStats{}, false
	}
	endpoints := make(model.UserEndpointStats, len(s.userEndpoint[username]))
	for k, v := range s.userEndpoint[username] {
		endpoints[k] = v
	}
	return model.UserStats{Total: total, Endpoints: endpoints}, true
}

// UserEndpointStats returns the per-endpoint breakdown for username, or
// ok=false if the user has never made a request.
func (s *Stats) UserEndpointStats(username string) (model.UserEndpointStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	endpoints, ok := s.userEndpoint[username]
	if !ok {
		return nil, false
	}
	cp := make(model.UserEndpointStats, len(endpoints))
	for k, v := range endpoints {
		cp[k] = v
	}
	return cp, true
}

// Global returns the instance-wide request total.
func (s *Stats) Global() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}
