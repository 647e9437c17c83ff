package model

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestAddressesUnmarshalSingle(t *testing.T) {
	var a Addresses
	require.NoError(t, json.Unmarshal([]byte(`"127.0.0.1:8080"`), &a))
	require.Len(t, a, 1)
	assert.Equal(t, 8080, a[0].Port)
}

func TestAddressesUnmarshalMany(t *testing.T) {
	var a Addresses
	require.NoError(t, json.Unmarshal([]byte(`["127.0.0.1:8080","127.0.0.1:8081"]`), &a))
	require.Len(t, a, 2)
}

func TestAddressesDedupAndSort(t *testing.T) {
	tcp1, _ := net.ResolveTCPAddr("tcp", "127.0.0.1:9000")
	tcp2, _ := net.ResolveTCPAddr("tcp", "127.0.0.1:8000")
	a := NewAddresses(*tcp1, *tcp2, *tcp1)
	require.Len(t, a, 2)
	assert.Equal(t, 8000, a[0].Port)
	assert.Equal(t, 9000, a[1].Port)
}

func TestAddressesAddUnion(t *testing.T) {
	tcp1, _ := net.ResolveTCPAddr("tcp", "127.0.0.1:9000")
	tcp2, _ := net.ResolveTCPAddr("tcp", "127.0.0.1:8000")
	a := NewAddresses(*tcp1)
	b := NewAddresses(*tcp2)
	merged := a.Add(b)
	assert.Len(t, merged, 2)
}

func TestAddressesRoundTrip(t *testing.T) {
	tcp1, _ := net.ResolveTCPAddr("tcp", "127.0.0.1:9000")
	a := NewAddresses(*tcp1)
	data, err := json.Marshal(a)
	require.NoError(t, err)

	var back Addresses
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, a, back)
}

func TestAddressesYAMLSingleAndMany(t *testing.T) {
	var single Addresses
	require.NoError(t, yaml.Unmarshal([]byte(`"127.0.0.1:8080"`), &single))
	require.Len(t, single, 1)

	var many Addresses
	require.NoError(t, yaml.Unmarshal([]byte("- 127.0.0.1:8080\n- 127.0.0.1:8081\n"), &many))
	require.Len(t, many, 2)
}

func TestAddressesYAMLRoundTrip(t *testing.T) {
	tcp1, _ := net.ResolveTCPAddr("tcp", "127.0.0.1:9000")
	a := NewAddresses(*tcp1)
	data, err := yaml.Marshal(a)
	require.NoError(t, err)

	var back Addresses
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, a, back)
}
