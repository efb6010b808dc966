package webhdfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AnishMulay/hdfswindow/internal/address_table"
	"github.com/AnishMulay/hdfswindow/internal/file_status"
	"github.com/AnishMulay/hdfswindow/internal/log_service"
	pc "github.com/AnishMulay/hdfswindow/internal/protocol_client"
	"golang.org/x/time/rate"
)

const maxErrorBody = 4 << 10

// Resolver rewrites datanode hostnames found in redirects.
type Resolver interface {
	Resolve(hostnameOrURL string) string
}

type identityResolver struct{}

func (identityResolver) Resolve(s string) string { return s }

type Options struct {
	Endpoint  pc.Endpoint
	Addresses Resolver

	RequestTimeout   time.Duration
	ReadRangeTimeout time.Duration
	TransferTimeout  time.Duration
	ConnectTimeout   time.Duration

	// MaxRetries bounds extra attempts for idempotent reads.
	MaxRetries int
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int

	// Transport replaces the dialing transport (tests).
	Transport http.RoundTripper
}

func DefaultOptions(ep pc.Endpoint) Options {
	return Options{
		Endpoint:         ep,
		RequestTimeout:   30 * time.Second,
		ReadRangeTimeout: 6 * time.Second,
		TransferTimeout:  time.Hour,
		ConnectTimeout:   3 * time.Second,
		MaxRetries:       3,
	}
}

type WebHDFSClient struct {
	ep         pc.Endpoint
	addresses  Resolver
	ls         log_service.LogService
	limiter    *rate.Limiter
	maxRetries int

	metadata   *http.Client // follows redirects through the address table
	rangeRead  *http.Client // same, with the short range timeout
	createStep *http.Client // never follows redirects
	transfer   *http.Client // bulk bodies, never follows redirects
	download   *http.Client // bulk bodies, follows redirects through the address table
}

func NewWebHDFSClient(opts Options, ls log_service.LogService) *WebHDFSClient {
	defaults := DefaultOptions(opts.Endpoint)
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaults.RequestTimeout
	}
	if opts.ReadRangeTimeout <= 0 {
		opts.ReadRangeTimeout = defaults.ReadRangeTimeout
	}
	if opts.TransferTimeout <= 0 {
		opts.TransferTimeout = defaults.TransferTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaults.ConnectTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Addresses == nil {
		opts.Addresses = identityResolver{}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	c := &WebHDFSClient{
		ep:         opts.Endpoint,
		addresses:  opts.Addresses,
		ls:         ls,
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: opts.MaxRetries,
	}
	noRedirect := func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	c.metadata = &http.Client{Transport: transport, Timeout: opts.RequestTimeout, CheckRedirect: c.followResolved}
	c.rangeRead = &http.Client{Transport: transport, Timeout: opts.ReadRangeTimeout, CheckRedirect: c.followResolved}
	c.createStep = &http.Client{Transport: transport, Timeout: opts.RequestTimeout, CheckRedirect: noRedirect}
	c.transfer = &http.Client{Transport: transport, Timeout: opts.TransferTimeout, CheckRedirect: noRedirect}
	c.download = &http.Client{Transport: transport, Timeout: opts.TransferTimeout, CheckRedirect: c.followResolved}
	return c
}

// followResolved sends namenode -> datanode redirects to the address the
// address table knows for the datanode.
func (c *WebHDFSClient) followResolved(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	original := req.URL.String()
	resolved := c.addresses.Resolve(original)
	if resolved == original {
		return nil
	}
	u, err := url.Parse(resolved)
	if err != nil {
		return nil
	}
	c.ls.Debug(log_service.LogEvent{
		Message:  "Rewriting redirect target",
		Metadata: map[string]any{"from": req.URL.Host, "to": u.Host},
	})
	req.URL = u
	req.Host = ""
	return nil
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// call performs one request and buffers the body. Transport failures come
// back wrapped in ErrTransport.
func (c *WebHDFSClient) call(ctx context.Context, client *http.Client, method, target string, body io.Reader, op, path string) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, pc.TransportError(op, path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, pc.TransportError(op, path, err)
	}
	if body != nil && body != http.NoBody {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, pc.TransportError(op, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pc.TransportError(op, path, err)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

// callIdempotent retries transport failures, 429 and 5xx with exponential backoff.
func (c *WebHDFSClient) callIdempotent(ctx context.Context, client *http.Client, target, op, path string) (*response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, err := c.call(ctx, client, http.MethodGet, target, nil, op, path)
		if err == nil {
			if err = remoteError(op, path, resp); err == nil {
				return resp, nil
			}
		}
		lastErr = err
		if !retryable(ctx, err) || attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
		c.ls.Debug(log_service.LogEvent{
			Message:  "Retrying request",
			Metadata: map[string]any{"op": op, "path": path, "attempt": attempt + 1, "backoff": backoff.String(), "error": err.Error()},
		})
		select {
		case <-ctx.Done():
			return nil, pc.TransportError(op, path, ctx.Err())
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var re *pc.RemoteError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return errors.Is(err, pc.ErrTransport)
}

// remoteError converts a non-2xx response into a *RemoteError.
func remoteError(op, path string, resp *response) error {
	if resp.ok() {
		return nil
	}
	re := &pc.RemoteError{Op: op, Path: path, StatusCode: resp.status}
	if ex, ok := file_status.ParseRemoteException(resp.body); ok {
		re.Exception = ex.Exception
		re.JavaClassName = ex.JavaClassName
		re.Message = ex.Message
	} else {
		msg := strings.TrimSpace(string(resp.body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		re.Message = msg
	}
	return re
}

func (c *WebHDFSClient) locate(op, path string) (pc.Location, error) {
	loc, err := c.ep.Locate(path)
	if err != nil {
		c.ls.Warn(log_service.LogEvent{
			Message:  "Rejected remote path",
			Metadata: map[string]any{"op": op, "path": path, "error": err.Error()},
		})
		return pc.Location{}, fmt.Errorf("%s %q failed: %w", op, path, err)
	}
	return loc, nil
}

func (c *WebHDFSClient) logFailure(op, path string, err error) {
	c.ls.Warn(log_service.LogEvent{
		Message:  "WebHDFS operation failed",
		Metadata: map[string]any{"op": op, "path": path, "error": err.Error()},
	})
}

func (c *WebHDFSClient) LiveNodesURL() string {
	return address_table.LiveNodesURL(c.ep.BaseURL())
}

func (c *WebHDFSClient) ListStatus(ctx context.Context, path string) ([]file_status.FileStatus, error) {
	loc, err := c.locate(pc.OpListStatus, path)
	if err != nil {
		return nil, err
	}
	c.ls.Debug(log_service.LogEvent{Message: "Listing directory", Metadata: map[string]any{"path": loc.Path}})

	resp, err := c.callIdempotent(ctx, c.metadata, c.ep.URL(loc, pc.OpListStatus), pc.OpListStatus, loc.Path)
	if err != nil {
		c.logFailure(pc.OpListStatus, loc.Path, err)
		return nil, err
	}

	entries, err := file_status.ParseListing(resp.body)
	if err != nil {
		err = pc.MalformedResponseError(pc.OpListStatus, loc.Path, err)
		c.logFailure(pc.OpListStatus, loc.Path, err)
		return nil, err
	}
	for i := range entries {
		entries[i] = entries[i].WithParent(loc.Path)
	}
	return entries, nil
}

func (c *WebHDFSClient) GetFileStatus(ctx context.Context, path string) (file_status.FileStatus, error) {
	loc, err := c.locate(pc.OpGetFileStatus, path)
	if err != nil {
		return file_status.FileStatus{}, err
	}

	resp, err := c.callIdempotent(ctx, c.metadata, c.ep.URL(loc, pc.OpGetFileStatus), pc.OpGetFileStatus, loc.Path)
	if err != nil {
		if !errors.Is(err, pc.ErrNotFound) {
			c.logFailure(pc.OpGetFileStatus, loc.Path, err)
		}
		return file_status.FileStatus{}, err
	}

	fs, err := file_status.ParseSingleStatus(resp.body)
	if err != nil {
		return file_status.FileStatus{}, pc.MalformedResponseError(pc.OpGetFileStatus, loc.Path, err)
	}
	return fs.WithParent(loc.Path), nil
}

func rangeParams(offset, length int64) []pc.Param {
	params := []pc.Param{{Key: "offset", Value: strconv.FormatInt(offset, 10)}}
	if length > 0 {
		params = append(params, pc.Param{Key: "length", Value: strconv.FormatInt(length, 10)})
	}
	return params
}

func (c *WebHDFSClient) ReadRange(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	if offset < 0 {
		offset = 0
	}
	loc, err := c.locate(pc.OpOpen, path)
	if err != nil {
		return nil, err
	}
	if length <= 0 {
		return []byte{}, nil
	}

	target := c.ep.URL(loc, pc.OpOpen, rangeParams(offset, length)...)
	resp, err := c.callIdempotent(ctx, c.rangeRead, target, pc.OpOpen, loc.Path)
	if err != nil {
		c.logFailure(pc.OpOpen, loc.Path, err)
		return nil, err
	}
	if int64(len(resp.body)) > length {
		resp.body = resp.body[:length]
	}
	return resp.body, nil
}

func (c *WebHDFSClient) Open(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error) {
	if offset < 0 {
		offset = 0
	}
	loc, err := c.locate(pc.OpOpen, path)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, pc.TransportError(pc.OpOpen, loc.Path, err)
	}

	target := c.ep.URL(loc, pc.OpOpen, rangeParams(offset, length)...)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, pc.TransportError(pc.OpOpen, loc.Path, err)
	}
	resp, err := c.download.Do(req)
	if err != nil {
		err = pc.TransportError(pc.OpOpen, loc.Path, err)
		c.logFailure(pc.OpOpen, loc.Path, err)
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := remoteError(pc.OpOpen, loc.Path, &response{status: resp.StatusCode, header: resp.Header, body: body})
		c.logFailure(pc.OpOpen, loc.Path, err)
		return nil, err
	}
	return resp.Body, nil
}

func (c *WebHDFSClient) mutate(ctx context.Context, method, op, path string, params ...pc.Param) (pc.Location, *response, error) {
	loc, err := c.locate(op, path)
	if err != nil {
		return pc.Location{}, nil, err
	}
	resp, err := c.call(ctx, c.metadata, method, c.ep.URL(loc, op, params...), nil, op, loc.Path)
	if err == nil {
		err = remoteError(op, loc.Path, resp)
	}
	if err != nil {
		c.logFailure(op, loc.Path, err)
		return loc, nil, err
	}
	return loc, resp, nil
}

func (c *WebHDFSClient) Mkdirs(ctx context.Context, path string) (bool, error) {
	loc, resp, err := c.mutate(ctx, http.MethodPut, pc.OpMkdirs, path)
	if err != nil {
		return false, err
	}
	ok, err := file_status.ParseBoolean(resp.body)
	if err != nil {
		return false, pc.MalformedResponseError(pc.OpMkdirs, loc.Path, err)
	}
	c.ls.Info(log_service.LogEvent{Message: "Directory created", Metadata: map[string]any{"path": loc.Path, "result": ok}})
	return ok, nil
}

func (c *WebHDFSClient) Delete(ctx context.Context, path string, recursive bool) (bool, error) {
	loc, resp, err := c.mutate(ctx, http.MethodDelete, pc.OpDelete, path,
		pc.Param{Key: "recursive", Value: strconv.FormatBool(recursive)})
	if err != nil {
		return false, err
	}
	ok, err := file_status.ParseBoolean(resp.body)
	if err != nil {
		return false, pc.MalformedResponseError(pc.OpDelete, loc.Path, err)
	}
	c.ls.Info(log_service.LogEvent{Message: "Path deleted", Metadata: map[string]any{"path": loc.Path, "recursive": recursive, "result": ok}})
	return ok, nil
}

func (c *WebHDFSClient) Concat(ctx context.Context, dest string, sources []string) error {
	if len(sources) == 0 {
		return nil
	}
	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		loc, err := c.locate(pc.OpConcat, src)
		if err != nil {
			return err
		}
		parts = append(parts, loc.Path)
	}

	loc, _, err := c.mutate(ctx, http.MethodPost, pc.OpConcat, dest,
		pc.Param{Key: "sources", Value: strings.Join(parts, ",")})
	if err != nil {
		return err
	}
	c.ls.Info(log_service.LogEvent{Message: "Parts concatenated", Metadata: map[string]any{"path": loc.Path, "parts": len(parts)}})
	return nil
}

// CreateAndUpload runs the two-step create. Step one asks the namenode where
// to write without following its redirect; step two streams the section to
// that datanode, or to the original URL when the gateway gave no location.
func (c *WebHDFSClient) CreateAndUpload(ctx context.Context, path string, src io.ReaderAt, offset, length int64) error {
	loc, err := c.locate(pc.OpCreate, path)
	if err != nil {
		return err
	}
	createURL := c.ep.URL(loc, pc.OpCreate,
		pc.Param{Key: "overwrite", Value: "true"},
		pc.Param{Key: "noredirect", Value: "true"})

	resp, err := c.call(ctx, c.createStep, http.MethodPut, createURL, nil, pc.OpCreate, loc.Path)
	if err != nil {
		c.logFailure(pc.OpCreate, loc.Path, err)
		return err
	}

	target, err := c.redirectTarget(createURL, loc.Path, resp)
	if err != nil {
		c.logFailure(pc.OpCreate, loc.Path, err)
		return err
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "Uploading section",
		Metadata: map[string]any{"path": loc.Path, "offset": offset, "length": length, "target": hostOf(target)},
	})

	var body io.Reader = http.NoBody
	if length > 0 {
		// no Len method, so the transport sends it chunked
		body = &sectionBody{r: io.NewSectionReader(src, offset, length)}
	}
	resp, err = c.call(ctx, c.transfer, http.MethodPut, target, body, pc.OpCreate, loc.Path)
	if err == nil {
		err = remoteError(pc.OpCreate, loc.Path, resp)
	}
	if err != nil {
		c.logFailure(pc.OpCreate, loc.Path, err)
		return err
	}
	return nil
}

func (c *WebHDFSClient) redirectTarget(createURL, path string, resp *response) (string, error) {
	var location string
	switch {
	case resp.status == http.StatusMovedPermanently, resp.status == http.StatusFound,
		resp.status == http.StatusTemporaryRedirect, resp.status == http.StatusPermanentRedirect:
		location = resp.header.Get("Location")
		if location == "" {
			return "", pc.MalformedResponseError(pc.OpCreate, path, file_status.ErrMissingLocation)
		}
	case resp.ok():
		location = resp.header.Get("Location")
		if location == "" {
			if l, err := file_status.ParseLocation(resp.body); err == nil {
				location = l
			}
		}
		if location == "" {
			c.ls.Debug(log_service.LogEvent{
				Message:  "No redirect location, uploading to the original URL",
				Metadata: map[string]any{"path": path, "status": resp.status},
			})
			return createURL, nil
		}
	default:
		return "", remoteError(pc.OpCreate, path, resp)
	}

	base, _ := url.Parse(createURL)
	ref, err := url.Parse(location)
	if err != nil {
		return "", pc.MalformedResponseError(pc.OpCreate, path, err)
	}
	return c.addresses.Resolve(base.ResolveReference(ref).String()), nil
}

func hostOf(target string) string {
	if u, err := url.Parse(target); err == nil {
		return u.Host
	}
	return ""
}

type sectionBody struct {
	r *io.SectionReader
}

func (b *sectionBody) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

var _ pc.ProtocolClient = (*WebHDFSClient)(nil)
