// Package discovery advertises a running errwatch daemon over mDNS and
// browses for daemons on the local network.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/armorclaw/errwatch/pkg/logger"
)

const (
	// ServiceName is the mDNS service type for errwatch
	ServiceName = "_errwatch._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultAPIPath is where the error API is mounted
	DefaultAPIPath = "/api/errors"

	// DefaultWSPath is where the event stream is mounted
	DefaultWSPath = "/ws"

	// DiscoveryTimeout is how long to wait for discovery responses
	DiscoveryTimeout = 3 * time.Second
)

// Instance describes an advertised errwatch daemon
type Instance struct {
	Name    string            `json:"name"`
	Host    string            `json:"host"`
	Port    int               `json:"port"`
	IPs     []net.IP          `json:"ips"`
	TXT     map[string]string `json:"txt"`
	Version string            `json:"version,omitempty"`
	APIPath string            `json:"api_path"`
	WSPath  string            `json:"ws_path"`
}

// Addr returns host:port for the daemon
func (i Instance) Addr() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

// URL returns the base HTTP URL of the daemon
func (i Instance) URL() string {
	return "http://" + i.Addr()
}

// ServerConfig contains configuration for the mDNS server
type ServerConfig struct {
	// InstanceName defaults to the hostname
	InstanceName string
	Port         int
	Version      string
	APIPath      string
	WSPath       string
	ExtraTXT     map[string]string
}

// Server advertises the daemon until stopped
type Server struct {
	mu      sync.Mutex
	server  *mdns.Server
	info    Instance
	running bool
	log     *logger.Logger
}

// NewServer starts advertising. The hashicorp server answers queries from
// the moment it is created.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Port <= 0 || config.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", config.Port)
	}

	info := instanceFor(config)

	ips, err := getLocalIPs()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IPs: %w", err)
	}
	info.IPs = ips

	service, err := mdns.NewMDNSService(
		info.Name,
		ServiceName,
		ServiceDomain,
		"",
		info.Port,
		ips,
		buildTXT(info),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS server: %w", err)
	}

	log := logger.Global().WithComponent("discovery")
	log.Info("advertising errwatch",
		slog.String("instance", info.Name),
		slog.Int("port", info.Port))

	return &Server{
		server:  server,
		info:    info,
		running: true,
		log:     log,
	}, nil
}

// Stop stops advertising
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.log.Info("stopped advertising")
	return s.server.Shutdown()
}

// Info returns the advertised instance
func (s *Server) Info() Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// instanceFor applies defaults to config
func instanceFor(config ServerConfig) Instance {
	name := config.InstanceName
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil || hostname == "" {
			hostname = "errwatch"
		}
		name = hostname
	}

	info := Instance{
		Name:    name,
		Port:    config.Port,
		Version: config.Version,
		APIPath: config.APIPath,
		WSPath:  config.WSPath,
		TXT:     make(map[string]string),
	}
	if info.APIPath == "" {
		info.APIPath = DefaultAPIPath
	}
	if info.WSPath == "" {
		info.WSPath = DefaultWSPath
	}
	for k, v := range config.ExtraTXT {
		info.TXT[k] = v
	}
	return info
}

// buildTXT renders the TXT records for an instance in a stable order
func buildTXT(info Instance) []string {
	txt := []string{
		"api_path=" + info.APIPath,
		"ws_path=" + info.WSPath,
	}
	if info.Version != "" {
		txt = append(txt, "version="+info.Version)
	}

	keys := make([]string, 0, len(info.TXT))
	for k := range info.TXT {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		txt = append(txt, k+"="+info.TXT[k])
	}
	return txt
}

// Client discovers errwatch daemons on the network
type Client struct {
	timeout time.Duration
}

// NewClient creates a new discovery client
func NewClient() *Client {
	return &Client{timeout: DiscoveryTimeout}
}

// SetTimeout sets the discovery timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Discover finds every daemon answering within the timeout. An empty result
// is not an error.
func (c *Client) Discover(ctx context.Context) ([]Instance, error) {
	entriesCh := make(chan *mdns.ServiceEntry, 16)
	done := make(chan struct{})

	var instances []Instance
	go func() {
		defer close(done)
		seen := make(map[string]bool)
		for entry := range entriesCh {
			if !strings.Contains(entry.Name, ServiceName) {
				continue
			}
			info := parseEntry(entry)
			if seen[info.Name+info.Addr()] {
				continue
			}
			seen[info.Name+info.Addr()] = true
			instances = append(instances, info)
		}
	}()

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	params := &mdns.QueryParam{
		Service: ServiceName,
		Domain:  "local",
		Timeout: timeout,
		Entries: entriesCh,
	}
	err := mdns.Query(params)
	close(entriesCh)
	<-done

	if err != nil {
		return nil, fmt.Errorf("mDNS query failed: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return instances, nil
}

// DiscoverOne returns the first daemon found
func (c *Client) DiscoverOne(ctx context.Context) (*Instance, error) {
	instances, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("no errwatch daemon found")
	}
	return &instances[0], nil
}

// parseEntry converts an mDNS entry to an Instance
func parseEntry(entry *mdns.ServiceEntry) Instance {
	name := entry.Name
	if i := strings.Index(name, "."+ServiceName); i > 0 {
		name = name[:i]
	}

	info := Instance{
		Name:    name,
		Port:    entry.Port,
		IPs:     []net.IP{},
		TXT:     make(map[string]string),
		APIPath: DefaultAPIPath,
		WSPath:  DefaultWSPath,
	}

	if entry.AddrV4 != nil {
		info.IPs = append(info.IPs, entry.AddrV4)
		info.Host = entry.AddrV4.String()
	}
	if entry.AddrV6 != nil {
		info.IPs = append(info.IPs, entry.AddrV6)
		if info.Host == "" {
			info.Host = entry.AddrV6.String()
		}
	}
	if info.Host == "" {
		info.Host = strings.TrimSuffix(entry.Host, ".")
	}

	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "api_path":
			info.APIPath = value
		case "ws_path":
			info.WSPath = value
		case "version":
			info.Version = value
		default:
			info.TXT[key] = value
		}
	}

	return info
}

// getLocalIPs returns the non-loopback addresses of interfaces that are up,
// falling back to loopback on isolated hosts
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			ips = append(ips, ip)
		}
	}

	if len(ips) == 0 {
		ips = append(ips, net.ParseIP("127.0.0.1"))
	}
	return ips, nil
}
