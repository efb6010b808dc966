package session

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/AnishMulay/hdfswindow/internal/address_table"
	"github.com/AnishMulay/hdfswindow/internal/config"
	"github.com/AnishMulay/hdfswindow/internal/file_service"
	fileservice "github.com/AnishMulay/hdfswindow/internal/file_service/simple"
	logservice "github.com/AnishMulay/hdfswindow/internal/log_service"
	locallog "github.com/AnishMulay/hdfswindow/internal/log_service/localdisc"
	zaplog "github.com/AnishMulay/hdfswindow/internal/log_service/zaplog"
	"github.com/AnishMulay/hdfswindow/internal/protocol_client"
	"github.com/AnishMulay/hdfswindow/internal/protocol_client/webhdfs"
	"github.com/AnishMulay/hdfswindow/internal/status_cache/inmemory"
	"github.com/AnishMulay/hdfswindow/internal/upload_service/chunked"
	"github.com/google/uuid"
)

type Options struct {
	ConfigPath string
	// Config, when set, is used as is and ConfigPath is ignored.
	Config *config.Config

	// ConsoleLevel enables a zap console sink on stderr at the given level.
	ConsoleLevel string
	// SkipRefresh leaves the address table with only its overrides.
	SkipRefresh bool
}

// Session is one wired client stack against a single cluster.
type Session struct {
	ID        string
	Config    *config.Config
	Endpoint  protocol_client.Endpoint
	Files     file_service.FileService
	Addresses *address_table.AddressTable
	Logs      logservice.LogService

	closers []func() error
}

func (s *Session) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func Build(ctx context.Context, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.LoadConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	s := &Session{ID: uuid.NewString(), Config: cfg}

	// 1. Logging
	disc, err := locallog.NewLocalDiscLogService(cfg.Log.Dir, s.ID, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, disc.Close)
	sinks := []logservice.LogService{disc}
	if opts.ConsoleLevel != "" {
		console, err := zaplog.NewConsoleLogService(s.ID, opts.ConsoleLevel)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() error {
			// stderr cannot be synced on most platforms.
			_ = console.Sync()
			return nil
		})
		sinks = append(sinks, console)
	}
	ls := logservice.Multi(sinks...)
	s.Logs = ls

	// 2. Endpoint
	ep, err := protocol_client.ParseEndpoint(cfg.Namenode, cfg.ManagementPort, cfg.APIPrefix, cfg.User)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("namenode %q: %w", cfg.Namenode, err)
	}
	s.Endpoint = ep

	// 3. Address table
	s.Addresses = address_table.New(ls,
		address_table.WithHTTPClient(liveNodesClient(cfg)),
		address_table.WithOverrides(cfg.AddressOverrides))

	// 4. Protocol client
	client := webhdfs.NewWebHDFSClient(webhdfs.Options{
		Endpoint:         ep,
		Addresses:        s.Addresses,
		RequestTimeout:   cfg.HTTP.RequestTimeout,
		ReadRangeTimeout: cfg.HTTP.ReadRangeTimeout,
		TransferTimeout:  cfg.HTTP.TransferTimeout,
		ConnectTimeout:   cfg.HTTP.ConnectTimeout,
		MaxRetries:       cfg.HTTP.MaxRetries,
		RateLimit:        cfg.HTTP.RateLimit,
		RateBurst:        cfg.HTTP.RateBurst,
	}, ls)

	// 5. Cache and uploader
	cache := inmemory.NewInMemoryStatusCache(client, ls)
	uploader := chunked.NewChunkedUploadService(client, cache, ls, chunked.Options{
		BlockSize:          cfg.Upload.BlockSize,
		Workers:            cfg.Upload.Workers,
		ChunkAttempts:      cfg.Upload.ChunkAttempts,
		CleanupFailedParts: cfg.Upload.CleanupFailedParts,
	})

	// 6. File service
	s.Files = fileservice.NewSimpleFileService(client, cache, uploader, s.Addresses, ls, cfg.TailSize)

	ls.Info(logservice.LogEvent{
		Timestamp: time.Now(),
		Message:   "Session started",
		Metadata:  map[string]any{"namenode": ep.BaseURL(), "user": ep.User, "pid": os.Getpid()},
	})

	if !opts.SkipRefresh {
		// Redirects to unknown datanodes still work when they are directly reachable.
		if _, err := s.Addresses.Refresh(ctx, client.LiveNodesURL()); err != nil {
			ls.Warn(logservice.LogEvent{
				Message:  "Initial address table refresh failed",
				Metadata: map[string]any{"error": err.Error()},
			})
		}
	}

	return s, nil
}

// liveNodesClient applies the configured connect and request timeouts to the
// JMX live node fetch.
func liveNodesClient(cfg *config.Config) *http.Client {
	return &http.Client{
		Timeout: cfg.HTTP.RequestTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.HTTP.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}
}
