package protocol_client

import (
	"fmt"
	"net"
	"net/url"
	pathpkg "path"
	"strconv"
	"strings"
)

const (
	DefaultManagementPort = 50070
	DefaultAPIPrefix      = "/webhdfs/v1"
	DefaultUser           = "hadoop"
)

// Param is one extra query argument. Params keep the order they are given in.
type Param struct {
	Key   string
	Value string
}

// Endpoint identifies the namenode gateway operations are addressed to.
type Endpoint struct {
	Scheme         string
	Host           string
	ManagementPort int
	APIPrefix      string
	User           string
}

// Location is a remote path together with the gateway that serves it.
type Location struct {
	Scheme string
	Host   string // host:port
	Path   string
}

// ParseEndpoint accepts a bare hostname, host:port (the port replaces
// managementPort), or an http(s) base URL.
func ParseEndpoint(namenode string, managementPort int, apiPrefix, user string) (Endpoint, error) {
	if managementPort <= 0 {
		managementPort = DefaultManagementPort
	}
	if apiPrefix == "" {
		apiPrefix = DefaultAPIPrefix
	}
	ep := Endpoint{
		Scheme:         "http",
		ManagementPort: managementPort,
		APIPrefix:      "/" + strings.Trim(apiPrefix, "/"),
		User:           user,
	}

	namenode = strings.TrimSpace(namenode)
	if namenode == "" {
		return Endpoint{}, fmt.Errorf("namenode address is empty")
	}

	if strings.Contains(namenode, "://") {
		u, err := url.Parse(namenode)
		if err != nil {
			return Endpoint{}, fmt.Errorf("invalid namenode address %q: %w", namenode, err)
		}
		switch u.Scheme {
		case "http", "https":
			ep.Scheme = u.Scheme
		case "hdfs":
			// rpc port is not the management port
			ep.Host = u.Hostname()
			return ep, nil
		default:
			return Endpoint{}, fmt.Errorf("unsupported namenode scheme %q", u.Scheme)
		}
		namenode = u.Host
	}

	host, port, err := net.SplitHostPort(namenode)
	if err != nil {
		ep.Host = namenode
		return ep, nil
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 {
		return Endpoint{}, fmt.Errorf("invalid namenode port %q", port)
	}
	ep.Host = host
	ep.ManagementPort = p
	return ep, nil
}

func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.ManagementPort))
}

func (e Endpoint) BaseURL() string {
	return e.Scheme + "://" + e.Address()
}

// Locate splits a locator into gateway and absolute path. hdfs://host:rpc/p
// selects host on the management port; http(s)://host:port/p is taken as is;
// anything else is a path on this endpoint.
func (e Endpoint) Locate(locator string) (Location, error) {
	loc := Location{Scheme: e.Scheme, Host: e.Address(), Path: strings.TrimSpace(locator)}

	if strings.Contains(loc.Path, "://") {
		u, err := url.Parse(loc.Path)
		if err != nil {
			return Location{}, fmt.Errorf("%w: %q: %v", ErrInvalidPath, locator, err)
		}
		switch strings.ToLower(u.Scheme) {
		case "hdfs":
			loc.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(e.ManagementPort))
		case "http", "https":
			loc.Scheme = strings.ToLower(u.Scheme)
			loc.Host = u.Host
		default:
			return Location{}, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidPath, locator)
		}
		if u.Hostname() == "" {
			return Location{}, fmt.Errorf("%w: no host in %q", ErrInvalidPath, locator)
		}
		loc.Path = u.Path
	}

	if !strings.HasPrefix(loc.Path, "/") {
		return Location{}, fmt.Errorf("%w: %q is not absolute", ErrInvalidPath, locator)
	}
	loc.Path = pathpkg.Clean(loc.Path)
	return loc, nil
}

// URL renders http://host/prefix/path?op=OP&user.name=U&k=v for loc.
func (e Endpoint) URL(loc Location, op string, params ...Param) string {
	u := url.URL{Scheme: loc.Scheme, Host: loc.Host, Path: e.APIPrefix + loc.Path}

	var q strings.Builder
	q.WriteString("op=")
	q.WriteString(op)
	if e.User != "" {
		q.WriteString("&user.name=")
		q.WriteString(url.QueryEscape(e.User))
	}
	for _, p := range params {
		q.WriteString("&")
		q.WriteString(url.QueryEscape(p.Key))
		q.WriteString("=")
		q.WriteString(url.QueryEscape(p.Value))
	}
	u.RawQuery = q.String()
	return u.String()
}

// BuildURL locates locator and renders the operation URL for it.
func (e Endpoint) BuildURL(locator, op string, params ...Param) (string, error) {
	loc, err := e.Locate(locator)
	if err != nil {
		return "", err
	}
	return e.URL(loc, op, params...), nil
}
