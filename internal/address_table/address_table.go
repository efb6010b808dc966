package address_table

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	internalerrors "github.com/AnishMulay/hdfswindow/internal/address_table/internal"
	"github.com/AnishMulay/hdfswindow/internal/log_service"
)

// LiveNodesQuery selects the NameNodeInfo LiveNodes attribute from the JMX servlet.
const LiveNodesQuery = "/jmx?get=Hadoop:service=NameNode,name=NameNodeInfo::LiveNodes"

var (
	ErrLiveNodesUnavailable = internalerrors.ErrLiveNodesUnavailable
	ErrMalformedLiveNodes   = internalerrors.ErrMalformedLiveNodes
	ErrInvalidHostname      = internalerrors.ErrInvalidHostname
	ErrInvalidAddress       = internalerrors.ErrInvalidAddress
)

// AddressTable maps datanode hostnames, as the namenode reports them in
// redirects, to addresses the client can actually reach.
type AddressTable struct {
	ls        log_service.LogService
	client    *http.Client
	overrides map[string]string
	entries   atomic.Pointer[map[string]string]
}

type Option func(*AddressTable)

func WithHTTPClient(client *http.Client) Option {
	return func(t *AddressTable) {
		if client != nil {
			t.client = client
		}
	}
}

// WithOverrides pins entries that survive every refresh and win over the
// live node listing.
func WithOverrides(overrides map[string]string) Option {
	return func(t *AddressTable) {
		for host, addr := range overrides {
			t.overrides[normalizeHost(host)] = addr
		}
	}
}

func New(ls log_service.LogService, opts ...Option) *AddressTable {
	t := &AddressTable{
		ls:        ls,
		client:    &http.Client{Timeout: 10 * time.Second},
		overrides: make(map[string]string),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.Replace(nil)
	return t
}

// LiveNodesURL builds the JMX live node URL for a namenode management endpoint
// given as host:port or as a base URL. Complete JMX URLs are returned as is.
func LiveNodesURL(endpoint string) string {
	if strings.Contains(endpoint, "/jmx?") {
		return endpoint
	}
	endpoint = strings.TrimRight(endpoint, "/")
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	return endpoint + LiveNodesQuery
}

// Refresh replaces the table with the namenode's current live node listing.
// On any failure the previous table stays in effect.
func (t *AddressTable) Refresh(ctx context.Context, endpoint string) (map[string]string, error) {
	target := LiveNodesURL(endpoint)
	t.ls.Debug(log_service.LogEvent{
		Message:  "Refreshing address table",
		Metadata: map[string]any{"url": target},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLiveNodesUnavailable, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		t.ls.Warn(log_service.LogEvent{
			Message:  "Live node request failed",
			Metadata: map[string]any{"url": target, "error": err.Error()},
		})
		return nil, fmt.Errorf("%w: %v", ErrLiveNodesUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLiveNodesUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.ls.Warn(log_service.LogEvent{
			Message:  "Live node request rejected",
			Metadata: map[string]any{"url": target, "status": resp.StatusCode},
		})
		return nil, fmt.Errorf("%w: status %d", ErrLiveNodesUnavailable, resp.StatusCode)
	}

	entries, err := ParseLiveNodes(body)
	if err != nil {
		t.ls.Warn(log_service.LogEvent{
			Message:  "Live node listing could not be decoded",
			Metadata: map[string]any{"url": target, "error": err.Error()},
		})
		return nil, err
	}

	t.Replace(entries)
	t.ls.Info(log_service.LogEvent{
		Message:  "Address table refreshed",
		Metadata: map[string]any{"nodes": len(entries), "overrides": len(t.overrides)},
	})
	return t.Snapshot(), nil
}

// Replace swaps in a new set of entries. Overrides are layered on top.
func (t *AddressTable) Replace(entries map[string]string) {
	next := make(map[string]string, len(entries)+len(t.overrides))
	for host, addr := range entries {
		next[normalizeHost(host)] = addr
	}
	for host, addr := range t.overrides {
		next[host] = addr
	}
	t.store(next)
}

func (t *AddressTable) store(m map[string]string) {
	t.entries.Store(&m)
}

func (t *AddressTable) Lookup(hostname string) (string, bool) {
	m := *t.entries.Load()
	host := normalizeHost(hostname)
	if addr, ok := m[host]; ok {
		return addr, true
	}
	// Datanodes register under their short name while redirects may carry the FQDN.
	if short, _, found := strings.Cut(host, "."); found && net.ParseIP(host) == nil {
		addr, ok := m[short]
		return addr, ok
	}
	return "", false
}

func (t *AddressTable) Snapshot() map[string]string {
	m := *t.entries.Load()
	out := make(map[string]string, len(m))
	for host, addr := range m {
		out[host] = addr
	}
	return out
}

func (t *AddressTable) Len() int {
	return len(*t.entries.Load())
}

// Resolve rewrites the host of a URL, a host:port pair, or a bare hostname
// through the table. Unknown hosts and unparsable input come back unchanged.
func (t *AddressTable) Resolve(hostnameOrURL string) string {
	if strings.Contains(hostnameOrURL, "://") {
		u, err := url.Parse(hostnameOrURL)
		if err != nil || u.Host == "" {
			return hostnameOrURL
		}
		addr, ok := t.Lookup(u.Hostname())
		if !ok {
			return hostnameOrURL
		}
		if port := u.Port(); port != "" {
			u.Host = net.JoinHostPort(addr, port)
		} else {
			u.Host = addr
		}
		return u.String()
	}

	if host, port, err := net.SplitHostPort(hostnameOrURL); err == nil {
		if addr, ok := t.Lookup(host); ok {
			return net.JoinHostPort(addr, port)
		}
		return hostnameOrURL
	}

	if addr, ok := t.Lookup(hostnameOrURL); ok {
		return addr
	}
	return hostnameOrURL
}

type jmxResponse struct {
	Beans []struct {
		LiveNodes *string `json:"LiveNodes"`
	} `json:"beans"`
}

type liveNode struct {
	InfoAddr string `json:"infoAddr"`
	XferAddr string `json:"xferaddr"`
}

// ParseLiveNodes decodes a JMX LiveNodes response into hostname -> ip.
// beans[0].LiveNodes is itself a JSON document keyed by "host:xferPort".
func ParseLiveNodes(body []byte) (map[string]string, error) {
	var resp jmxResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLiveNodes, err)
	}
	if len(resp.Beans) == 0 || resp.Beans[0].LiveNodes == nil {
		return nil, fmt.Errorf("%w: no LiveNodes bean", ErrMalformedLiveNodes)
	}

	var nodes map[string]liveNode
	if err := json.Unmarshal([]byte(*resp.Beans[0].LiveNodes), &nodes); err != nil {
		return nil, fmt.Errorf("%w: LiveNodes: %v", ErrMalformedLiveNodes, err)
	}

	out := make(map[string]string, len(nodes))
	for key, node := range nodes {
		host, _, _ := strings.Cut(key, ":")
		if host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHostname, key)
		}
		addr := node.InfoAddr
		if addr == "" {
			addr = node.XferAddr
		}
		ip, _, _ := strings.Cut(addr, ":")
		if ip == "" {
			return nil, fmt.Errorf("%w: node %q", ErrInvalidAddress, key)
		}
		out[normalizeHost(host)] = ip
	}
	return out, nil
}

func normalizeHost(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}
