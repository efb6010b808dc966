package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/AnishMulay/hdfswindow/clients/session"
	"github.com/AnishMulay/hdfswindow/internal/upload_service"
	"github.com/dustin/go-humanize"
	"golang.org/x/exp/slices"
)

var errUsage = errors.New("wrong number of arguments")

func runList(ctx context.Context, s *session.Session, args []string) error {
	dir := "/"
	if len(args) > 0 {
		dir = args[0]
	}
	listing, err := s.Files.ListDirectory(ctx, dir)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, fs := range listing.Directories() {
		fmt.Fprintln(w, formatEntry(fs))
	}
	for _, fs := range listing.Files() {
		fmt.Fprintln(w, formatEntry(fs))
	}
	return w.Flush()
}

func runStat(ctx context.Context, s *session.Session, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	fs, err := s.Files.Stat(ctx, args[0])
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, row := range describe(fs) {
		fmt.Fprintf(w, "%s:\t%s\n", row[0], row[1])
	}
	return w.Flush()
}

func runTail(ctx context.Context, s *session.Session, args []string) error {
	fset := flag.NewFlagSet("tail", flag.ContinueOnError)
	size := fset.String("c", "", "Bytes to read from the end, e.g. 100KiB")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() != 1 {
		return errUsage
	}

	var n int64
	if *size != "" {
		parsed, err := humanize.ParseBytes(*size)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", *size, err)
		}
		n = int64(parsed)
	}
	data, _, err := s.Files.ReadTail(ctx, fset.Arg(0), n)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runCat(ctx context.Context, s *session.Session, args []string) error {
	fset := flag.NewFlagSet("cat", flag.ContinueOnError)
	offset := fset.Int64("offset", 0, "Start offset")
	length := fset.Int64("length", 1<<20, "Bytes to read")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() != 1 {
		return errUsage
	}
	data, err := s.Files.ReadRange(ctx, fset.Arg(0), *offset, *length)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runGet(ctx context.Context, s *session.Session, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	local := "."
	if len(args) == 2 {
		local = args[1]
	}
	n, err := s.Files.Download(ctx, args[0], local)
	if err != nil {
		return err
	}
	fmt.Printf("downloaded %s\n", humanize.IBytes(uint64(n)))
	return nil
}

func runPut(ctx context.Context, s *session.Session, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errUsage
	}
	req := upload_service.UploadRequest{
		LocalPath: args[0],
		TargetDir: args[1],
		Progress:  printProgress,
	}
	if len(args) == 3 {
		req.RemoteName = args[2]
	}

	result, err := s.Files.Upload(ctx, req)
	if result != nil && len(result.FailedChunks) > 0 {
		fmt.Fprintf(os.Stderr, "failed chunks: %v\n", result.FailedIndices())
	}
	if err != nil {
		return err
	}
	fmt.Printf("uploaded %s to %s in %s (%d chunks)\n",
		humanize.IBytes(uint64(result.Bytes)), result.RemotePath, result.Elapsed.Round(time.Millisecond), result.ChunkCount)
	return nil
}

func printProgress(ev upload_service.ProgressEvent) {
	switch ev.Phase {
	case upload_service.PhaseTransferring:
		if ev.Index >= 0 {
			fmt.Fprintf(os.Stderr, "\r%d/%d chunks done, %d failed, %d in flight", ev.Completed, ev.Total, ev.Failed, ev.InFlight)
		}
	case upload_service.PhaseConcatenating:
		fmt.Fprintf(os.Stderr, "\nconcatenating %d parts\n", ev.Total)
	case upload_service.PhaseFailed:
		fmt.Fprintf(os.Stderr, "\nupload failed: %s\n", ev.Message)
	}
}

func runMkdir(ctx context.Context, s *session.Session, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	return s.Files.Mkdir(ctx, args[0])
}

func runRemove(ctx context.Context, s *session.Session, args []string) error {
	fset := flag.NewFlagSet("rm", flag.ContinueOnError)
	recursive := fset.Bool("r", false, "Delete directories and their contents")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() != 1 {
		return errUsage
	}
	return s.Files.Delete(ctx, fset.Arg(0), *recursive)
}

func runNodes(_ context.Context, s *session.Session, _ []string) error {
	printNodes(s.Addresses.Snapshot())
	return nil
}

func runRefresh(ctx context.Context, s *session.Session, _ []string) error {
	nodes, err := s.Files.Refresh(ctx)
	if err != nil {
		return err
	}
	printNodes(nodes)
	return nil
}

func printNodes(nodes map[string]string) {
	hosts := make([]string, 0, len(nodes))
	for host := range nodes {
		hosts = append(hosts, host)
	}
	slices.Sort(hosts)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, host := range hosts {
		fmt.Fprintf(w, "%s\t%s\n", host, nodes[host])
	}
	w.Flush()
}
