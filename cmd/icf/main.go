// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Command icf inspects record containers.
//
//	icf info FILE               header, sub-files and bunch counts
//	icf cat [-n N] [-from I] FILE
//	icf sum FILE                per-record fingerprints
//	icf frame FILE INDEX        decode one record as a frame
//	icf verify FILE             check every checksum
//	icf concat -o OUT FILE...   byte-wise concatenation
//	icf shell FILE              interactive session
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
)

var errUsage = errors.New("usage")

type command struct {
	name  string
	usage string
	run   func(env *env, args []string) error
}

// env is what every command writes to.
type env struct {
	stdout io.Writer
	stdin  io.Reader
	logger *slog.Logger
}

var commands []command

func init() {
	commands = []command{
		{"info", "info FILE", runInfo},
		{"cat", "cat [-n N] [-from I] [-raw] FILE", runCat},
		{"sum", "sum FILE", runSum},
		{"frame", "frame FILE INDEX", runFrame},
		{"verify", "verify FILE", runVerify},
		{"concat", "concat -o OUT FILE...", runConcat},
		{"shell", "shell FILE", runShell},
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "usage: icf [-v] COMMAND [ARGS]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\n", c.usage)
	}
}

func run(e *env, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(e, args[1:])
		}
	}
	return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
}

func main() {
	verbose := flag.Bool("v", false, "log debug output to stderr")
	flag.Usage = func() { usage(os.Stderr) }
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	e := &env{stdout: os.Stdout, stdin: os.Stdin, logger: logger}
	if err := run(e, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
		}
		fmt.Fprintf(os.Stderr, "icf: %s\n", err)
		os.Exit(1)
	}
}
