package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayd/relayd/pkg/model"
)

func TestStateAddServiceAssignsDefaultName(t *testing.T) {
	s := NewState()
	svc, err := s.AddService(model.CreateService{From: "/a", To: "http://backend/"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, svc.Name)
}

func TestStateAddServiceRejectsOverlappingEndpoints(t *testing.T) {
	s := NewState()
	_, err := s.AddService(model.CreateService{Name: "one", From: "/api", To: "http://backend/"}, nil)
	require.NoError(t, err)

	_, err = s.AddService(model.CreateService{Name: "two", From: "/api/v2", To: "http://backend/"}, nil)
	require.Error(t, err)
	var svcErr *model.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, model.ServiceAlreadyExists, svcErr.Kind)
}

func TestStateAddServiceRejectsDuplicateName(t *testing.T) {
	s := NewState()
	_, err := s.AddService(model.CreateService{Name: "dup", From: "/a", To: "http://backend/"}, nil)
	require.NoError(t, err)

	_, err = s.AddService(model.CreateService{Name: "dup", From: "/b", To: "http://backend/"}, nil)
	require.Error(t, err)
}

func TestStateMatchEndpointFindsPrefix(t *testing.T) {
	s := NewState()
	_, err := s.AddService(model.CreateService{Name: "svc", From: "/api", To: "http://backend/"}, nil)
	require.NoError(t, err)

	match, ok := s.MatchEndpoint("/api/v1/resource")
	require.True(t, ok)
	assert.Equal(t, "svc", match.ServiceName)

	_, ok = s.MatchEndpoint("/other")
	assert.False(t, ok)
}

func TestStateUserLifecycle(t *testing.T) {
	s := NewState()
	_, err := s.AddService(model.CreateService{Name: "svc", From: "/api", To: "http://backend/"}, nil)
	require.NoError(t, err)

	_, err = s.AddUser("svc", model.CreateUser{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	_, err = s.GetUser("svc", "alice")
	require.NoError(t, err)

	users, err := s.Users("svc")
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, s.RemoveUser("svc", "alice"))
	_, err = s.GetUser("svc", "alice")
	require.Error(t, err)
}

func TestStateRemoveServiceFreesEndpoint(t *testing.T) {
	s := NewState()
	_, err := s.AddService(model.CreateService{Name: "svc", From: "/api", To: "http://backend/"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.RemoveService("svc"))

	_, err = s.AddService(model.CreateService{Name: "svc2", From: "/api", To: "http://backend/"}, nil)
	require.NoError(t, err)
}
