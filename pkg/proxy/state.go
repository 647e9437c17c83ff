// Package proxy implements a single Proxy Instance: the runtime entity
// that owns one or more listeners and the set of services multiplexed onto
// them.
package proxy

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/relayd/relayd/pkg/forwarding"
	"github.com/relayd/relayd/pkg/model"
)

// service is the instance-local runtime record for one tenant: its
// immutable-after-creation config plus the mutable credential set.
type service struct {
	model.Service
	from   *url.URL
	to     *url.URL
	access map[string]struct{} // credential -> present
}

// State holds every service multiplexed onto one proxy instance, indexed
// both by normalized endpoint (for request-time prefix lookup) and by
// name (for management-API lookup). Guarded by its own RWMutex; always
// acquired after the owning Manager's map lock and before Stats, per the
// global lock-ordering contract.
type State struct {
	mu         sync.RWMutex
	byEndpoint map[string]*service
	byName     map[string]*service
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		byEndpoint: make(map[string]*service),
		byName:     make(map[string]*service),
	}
}

func normalizeEndpoint(from string) string {
	if from == "" {
		return "/"
	}
	if !strings.HasPrefix(from, "/") {
		from = "/" + from
	}
	return from
}

// AddService inserts a new service, enforcing the prefix-disjoint endpoint
// invariant by linear scan. Returns *model.ServiceError{Kind: AlreadyExists}
// if the name is taken or the endpoint overlaps an existing one.
func (s *State) AddService(create model.CreateService, createdWith model.Addresses) (model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if create.Name == "" {
		create.Name = model.NextServiceName()
	}
	if _, exists := s.byName[create.Name]; exists {
		return model.Service{}, &model.ServiceError{Kind: model.ServiceAlreadyExists, Name: create.Name}
	}

	endpoint := normalizeEndpoint(create.From)
	for existing := range s.byEndpoint {
		if strings.HasPrefix(existing, endpoint) || strings.HasPrefix(endpoint, existing) {
			return model.Service{}, &model.ServiceError{Kind: model.ServiceAlreadyExists, Name: create.Name}
		}
	}

	fromURL, err := url.Parse(endpoint)
	if err != nil {
		return model.Service{}, &model.ConfError{Msg: "invalid from: " + err.Error()}
	}
	toURL, err := url.Parse(create.To)
	if err != nil {
		return model.Service{}, &model.ConfError{Msg: "invalid to: " + err.Error()}
	}

	create.From = endpoint
	rec := &service{
		Service: model.Service{
			CreateService: create,
			CreatedAt:     time.Now(),
			CreatedWith:   createdWith,
		},
		from:   fromURL,
		to:     toURL,
		access: make(map[string]struct{}),
	}

	s.byEndpoint[endpoint] = rec
	s.byName[create.Name] = rec
	return rec.Service, nil
}

// RemoveService deletes a service by name.
func (s *State) RemoveService(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byName[name]
	if !ok {
		return &model.ServiceError{Kind: model.ServiceNotFound, Name: name}
	}
	delete(s.byName, name)
	delete(s.byEndpoint, rec.From)
	return nil
}

// GetService returns the public view of a named service.
func (s *State) GetService(name string) (model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byName[name]
	if !ok {
		return model.Service{}, &model.ServiceError{Kind: model.ServiceNotFound, Name: name}
	}
	return rec.Service, nil
}

// Services returns the public view of every service on this instance.
func (s *State) Services() []model.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Service, 0, len(s.byName))
	for _, rec := range s.byName {
		out = append(out, rec.Service)
	}
	return out
}

// MatchEndpoint finds the unique service whose endpoint is a prefix of
// path and returns a snapshot safe to use after the read lock is released.
func (s *State) MatchEndpoint(path string) (forwarding.Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for endpoint, rec := range s.byEndpoint {
		if strings.HasPrefix(path, endpoint) {
			access := make(map[string]struct{}, len(rec.access))
			for cred := range rec.access {
				access[cred] = struct{}{}
			}
			return forwarding.Match{ServiceName: rec.Name, From: rec.from, To: rec.to, Access: access}, true
		}
	}
	return forwarding.Match{}, false
}

// AddUser registers a Basic-auth credential for a service.
func (s *State) AddUser(serviceName string, user model.CreateUser) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byName[serviceName]
	if !ok {
		return model.User{}, &model.ServiceError{Kind: model.ServiceNotFound, Name: serviceName}
	}
	cred := user.Credential()
	if _, exists := rec.access[cred]; exists {
		return model.User{}, &model.UserError{Kind: model.UserAlreadyExists, Username: user.Username}
	}
	rec.access[cred] = struct{}{}
	return model.User{Username: user.Username}, nil
}

// RemoveUser deletes a credential by username (credentials are scanned
// since only the encoded form is stored).
func (s *State) RemoveUser(serviceName, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byName[serviceName]
	if !ok {
		return &model.ServiceError{Kind: model.ServiceNotFound, Name: serviceName}
	}
	for cred := range rec.access {
		if name, ok := model.UsernameFromCredential(cred); ok && name == username {
			delete(rec.access, cred)
			return nil
		}
	}
	return &model.UserError{Kind: model.UserNotFound, Username: username}
}

// Users lists the usernames registered against a service.
func (s *State) Users(serviceName string) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byName[serviceName]
	if !ok {
		return nil, &model.ServiceError{Kind: model.ServiceNotFound, Name: serviceName}
	}
	out := make([]model.User, 0, len(rec.access))
	for cred := range rec.access {
		if name, ok := model.UsernameFromCredential(cred); ok {
			out = append(out, model.User{Username: name})
		}
	}
	return out, nil
}

// GetUser confirms a username is registered against a service.
func (s *State) GetUser(serviceName, username string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byName[serviceName]
	if !ok {
		return model.User{}, &model.ServiceError{Kind: model.ServiceNotFound, Name: serviceName}
	}
	for cred := range rec.access {
		if name, ok := model.UsernameFromCredential(cred); ok && name == username {
			return model.User{Username: username}, nil
		}
	}
	return model.User{}, &model.UserError{Kind: model.UserNotFound, Username: username}
}
