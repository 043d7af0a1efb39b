package discovery

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceFor_Defaults(t *testing.T) {
	info := instanceFor(ServerConfig{Port: 7391})

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "errwatch"
	}
	assert.Equal(t, hostname, info.Name)
	assert.Equal(t, DefaultAPIPath, info.APIPath)
	assert.Equal(t, DefaultWSPath, info.WSPath)
	assert.Equal(t, 7391, info.Port)
}

func TestBuildTXT(t *testing.T) {
	info := instanceFor(ServerConfig{
		InstanceName: "desk",
		Port:         7391,
		Version:      "1.0.0",
		ExtraTXT:     map[string]string{"zone": "b", "env": "dev"},
	})

	assert.Equal(t, []string{
		"api_path=/api/errors",
		"ws_path=/ws",
		"version=1.0.0",
		"env=dev",
		"zone=b",
	}, buildTXT(info))
}

func TestParseEntry(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "desk._errwatch._tcp.local.",
		Host:       "desk.local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       7391,
		InfoFields: []string{"api_path=/api/errors", "ws_path=/stream", "version=1.0.0", "env=dev", "junk"},
	}

	info := parseEntry(entry)
	assert.Equal(t, "desk", info.Name)
	assert.Equal(t, "192.168.1.20", info.Host)
	assert.Equal(t, "/api/errors", info.APIPath)
	assert.Equal(t, "/stream", info.WSPath)
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, map[string]string{"env": "dev"}, info.TXT)
	assert.Equal(t, "http://192.168.1.20:7391", info.URL())
}

func TestParseEntry_Fallbacks(t *testing.T) {
	info := parseEntry(&mdns.ServiceEntry{
		Name:   "lab._errwatch._tcp.local.",
		Host:   "lab.local.",
		AddrV6: net.ParseIP("fe80::1"),
		Port:   9000,
	})
	assert.Equal(t, "fe80::1", info.Host)
	assert.Equal(t, DefaultAPIPath, info.APIPath)
	assert.Equal(t, "[fe80::1]:9000", info.Addr())

	info = parseEntry(&mdns.ServiceEntry{Name: "x._errwatch._tcp.local.", Host: "x.local.", Port: 1})
	assert.Equal(t, "x.local", info.Host)
}

func TestNewServer_InvalidPort(t *testing.T) {
	_, err := NewServer(ServerConfig{Port: 0})
	assert.Error(t, err)
}

func TestGetLocalIPs(t *testing.T) {
	ips, err := getLocalIPs()
	require.NoError(t, err)
	assert.NotEmpty(t, ips)
}

func TestDiscover_ContextCancelled(t *testing.T) {
	if testing.Short() {
		t.Skip("multicast query")
	}
	c := NewClient()
	c.SetTimeout(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Discover(ctx)
	assert.Error(t, err)
}
