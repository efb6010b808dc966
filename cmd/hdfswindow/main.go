package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/AnishMulay/hdfswindow/clients/session"
	"github.com/AnishMulay/hdfswindow/internal/config"
	"github.com/pkg/profile"
	"golang.org/x/exp/slices"
)

type command struct {
	usage string
	run   func(ctx context.Context, s *session.Session, args []string) error
}

var commands = map[string]command{
	"ls":      {usage: "ls [path]", run: runList},
	"stat":    {usage: "stat <path>", run: runStat},
	"tail":    {usage: "tail [-c bytes] <path>", run: runTail},
	"cat":     {usage: "cat [-offset n] [-length n] <path>", run: runCat},
	"get":     {usage: "get <remote> [local]", run: runGet},
	"put":     {usage: "put <local> <remote-dir> [name]", run: runPut},
	"mkdir":   {usage: "mkdir <path>", run: runMkdir},
	"rm":      {usage: "rm [-r] <path>", run: runRemove},
	"nodes":   {usage: "nodes", run: runNodes},
	"refresh": {usage: "refresh", run: runRefresh},
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: hdfswindow [flags] <command> [args]\n\ncommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
	fmt.Fprintf(os.Stderr, "\nflags:\n")
	flag.PrintDefaults()
}

func main() {
	var (
		configPath = flag.String("config", config.DefaultPath(), "Config file")
		namenode   = flag.String("namenode", "", "Namenode address, overrides the config file")
		user       = flag.String("user", "", "WebHDFS user.name, overrides the config file")
		verbose    = flag.Bool("v", false, "Log to stderr")
		profileDir = flag.String("profile", "", "Write a CPU profile to this directory")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	var prof interface{ Stop() }
	if *profileDir != "" {
		prof = profile.Start(profile.CPUProfile, profile.ProfilePath(filepath.Clean(*profileDir)), profile.Quiet, profile.NoShutdownHook)
	}
	code := run(cmd, *configPath, *namenode, *user, *verbose, flag.Args()[1:])
	if prof != nil {
		prof.Stop()
	}
	os.Exit(code)
}

func run(cmd command, configPath, namenode, user string, verbose bool, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hdfswindow: %v\n", err)
		return 1
	}
	if namenode != "" {
		cfg.Namenode = namenode
	}
	if user != "" {
		cfg.User = user
	}

	opts := session.Options{Config: cfg}
	if verbose {
		opts.ConsoleLevel = "DEBUG"
	}
	s, err := session.Build(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hdfswindow: %v\n", err)
		return 1
	}
	defer s.Close()

	if err := cmd.run(ctx, s, args); err != nil {
		fmt.Fprintf(os.Stderr, "hdfswindow: %v\n", err)
		return 1
	}
	return 0
}
