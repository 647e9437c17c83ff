package manager

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayd/relayd/pkg/model"
	"github.com/relayd/relayd/pkg/relayconf"
)

func freeAddr(t *testing.T) model.Addresses {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := *ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())
	return model.NewAddresses(addr)
}

func TestGetOrSpawnReusesInstanceForSameAddresses(t *testing.T) {
	conf := relayconf.DefaultProxyConf()
	conf.Server.BindHTTP = freeAddr(t)
	conf.Server.ServerName = []string{"edge.example.com"}
	mgr := New(conf)
	defer mgr.Stop()

	inst1, _, err := mgr.GetOrSpawn(context.Background(), model.CreateService{Name: "a", From: "/a", To: "http://backend/"})
	require.NoError(t, err)

	inst2, _, err := mgr.GetOrSpawn(context.Background(), model.CreateService{Name: "b", From: "/b", To: "http://backend/"})
	require.NoError(t, err)

	require.Same(t, inst1, inst2)
}

func TestGetOrSpawnRejectsServiceWithNoBindAddresses(t *testing.T) {
	conf := relayconf.DefaultProxyConf()
	conf.Server.ServerName = []string{"edge.example.com"}
	mgr := New(conf)
	defer mgr.Stop()

	_, _, err := mgr.GetOrSpawn(context.Background(), model.CreateService{Name: "a", From: "/a", To: "http://backend/"})
	require.Error(t, err)
}

func TestGetOrSpawnRejectsServiceWithNoServerName(t *testing.T) {
	conf := relayconf.DefaultProxyConf()
	conf.Server.BindHTTP = freeAddr(t)
	mgr := New(conf)
	defer mgr.Stop()

	_, _, err := mgr.GetOrSpawn(context.Background(), model.CreateService{Name: "a", From: "/a", To: "http://backend/"})
	require.ErrorContains(t, err, "Missing public address information")
}

func TestProxyByNameFindsServiceAcrossInstances(t *testing.T) {
	conf := relayconf.DefaultProxyConf()
	conf.Server.BindHTTP = freeAddr(t)
	conf.Server.ServerName = []string{"edge.example.com"}
	mgr := New(conf)
	defer mgr.Stop()

	inst, merged, err := mgr.GetOrSpawn(context.Background(), model.CreateService{Name: "svc", From: "/svc", To: "http://backend/"})
	require.NoError(t, err)
	_, err = inst.AddService(merged)
	require.NoError(t, err)

	found, ok := mgr.ProxyByName("svc")
	require.True(t, ok)
	require.Same(t, inst, found)

	_, ok = mgr.ProxyByName("missing")
	require.False(t, ok)
}
