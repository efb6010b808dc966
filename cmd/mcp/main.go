package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/AnishMulay/hdfswindow/clients/session"
	"github.com/AnishMulay/hdfswindow/internal/config"
	"github.com/AnishMulay/hdfswindow/internal/file_service"
	"github.com/AnishMulay/hdfswindow/internal/upload_service"
	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"
)

func addTools(s *server.MCPServer, files file_service.FileService) {
	s.AddTool(mcp.NewTool("list_directory",
		mcp.WithDescription("List an HDFS directory"),
		mcp.WithString("path", mcp.Description("Absolute HDFS path, defaults to /")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleList(ctx, request, files)
	})

	s.AddTool(mcp.NewTool("stat",
		mcp.WithDescription("Show the status of an HDFS file or directory"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute HDFS path")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleStat(ctx, request, files)
	})

	s.AddTool(mcp.NewTool("tail",
		mcp.WithDescription("Read the end of an HDFS file"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute HDFS path")),
		mcp.WithNumber("bytes", mcp.Description("Bytes to read from the end")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleTail(ctx, request, files)
	})

	s.AddTool(mcp.NewTool("mkdir",
		mcp.WithDescription("Create an HDFS directory and any missing parents"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute HDFS path")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := files.Mkdir(ctx, path); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create directory: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Created %s", path)), nil
	})

	s.AddTool(mcp.NewTool("delete",
		mcp.WithDescription("Delete an HDFS file or directory"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute HDFS path")),
		mcp.WithBoolean("recursive", mcp.Description("Delete directory contents too")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := files.Delete(ctx, path, request.GetBool("recursive", false)); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to delete: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Deleted %s", path)), nil
	})

	s.AddTool(mcp.NewTool("upload",
		mcp.WithDescription("Upload a local file into an HDFS directory"),
		mcp.WithString("local_path", mcp.Required(), mcp.Description("Local file to upload")),
		mcp.WithString("target_dir", mcp.Required(), mcp.Description("HDFS directory to upload into")),
		mcp.WithString("name", mcp.Description("Remote file name, defaults to the local base name")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleUpload(ctx, request, files)
	})
}

func handleList(ctx context.Context, request mcp.CallToolRequest, files file_service.FileService) (*mcp.CallToolResult, error) {
	listing, err := files.ListDirectory(ctx, request.GetString("path", "/"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list directory: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d entries)\n", listing.Path, len(listing.Entries))
	for _, fs := range listing.Directories() {
		fmt.Fprintf(&b, "- %s/\n", fs.Name)
	}
	for _, fs := range listing.Files() {
		fmt.Fprintf(&b, "- %s (%s)\n", fs.Name, humanize.IBytes(uint64(fs.Size)))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleStat(ctx context.Context, request mcp.CallToolRequest, files file_service.FileService) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fs, err := files.Stat(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to stat: %v", err)), nil
	}
	data, err := yaml.Marshal(fs)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func handleTail(ctx context.Context, request mcp.CallToolRequest, files file_service.FileService) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, fs, err := files.ReadTail(ctx, path, int64(request.GetFloat("bytes", 0)))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read file: %v", err)), nil
	}
	header := fmt.Sprintf("Last %s of %s (%s total)\n", humanize.IBytes(uint64(len(data))), fs.Path, humanize.IBytes(uint64(fs.Size)))
	if !utf8.Valid(data) {
		return mcp.NewToolResultText(header + "base64: " + base64.StdEncoding.EncodeToString(data)), nil
	}
	return mcp.NewToolResultText(header + string(data)), nil
}

func handleUpload(ctx context.Context, request mcp.CallToolRequest, files file_service.FileService) (*mcp.CallToolResult, error) {
	local, err := request.RequireString("local_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := request.RequireString("target_dir")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := files.Upload(ctx, upload_service.UploadRequest{
		LocalPath:  local,
		TargetDir:  target,
		RemoteName: request.GetString("name", ""),
	})
	if err != nil {
		if result != nil && len(result.FailedChunks) > 0 {
			return mcp.NewToolResultError(fmt.Sprintf("Upload failed, chunks %v did not transfer: %v", result.FailedIndices(), err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Upload failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Uploaded %s to %s in %d chunks",
		humanize.IBytes(uint64(result.Bytes)), result.RemotePath, result.ChunkCount)), nil
}

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Config file")
	flag.Parse()

	sess, err := session.Build(context.Background(), session.Options{ConfigPath: *configPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start session: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	s := server.NewMCPServer(
		"hdfswindow",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	addTools(s, sess.Files)

	// stdout belongs to the protocol; logs go to the session's log file.
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
	}
}
