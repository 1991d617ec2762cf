// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/bpowers/icf"
)

const shellHelp = `commands:
  len              number of records
  get INDEX        print a record
  frame INDEX      decode a record as a frame
  next             print the record at the cursor and advance
  rewind           move the cursor back to the first record
  info             container summary
  reload           pick up records appended since opening
  help             this message
  exit             quit`

// runShell opens one container and answers commands read from stdin.
// Lines are split with shell quoting rules.
func runShell(e *env, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("shell takes one file: %w", errUsage)
	}
	r, err := e.open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Fprintf(e.stdout, "Opened %s (%d records)\n", args[0], r.Len())
	fmt.Fprintln(e.stdout, "Type commands. 'help' for information or 'exit' to quit.")

	in := bufio.NewReader(e.stdin)
	for {
		fmt.Fprint(e.stdout, "> ")
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("input error: %w", err)
		}
		eof := err != nil
		if line = strings.TrimSpace(line); line != "" {
			if quit := shellLine(e, r, line); quit {
				return nil
			}
		}
		if eof {
			return nil
		}
	}
}

// shellLine runs one input line and reports whether the session is over.
func shellLine(e *env, r *icf.Reader, line string) bool {
	words, err := shellquote.Split(line)
	if err != nil {
		fmt.Fprintln(e.stdout, "parse error:", err)
		return false
	}
	if len(words) == 0 {
		return false
	}
	err = shellCommand(e, r, words)
	if errors.Is(err, errQuit) {
		return true
	} else if err != nil {
		fmt.Fprintln(e.stdout, "error:", err)
	}
	return false
}

func shellCommand(e *env, r *icf.Reader, words []string) error {
	index := func() (int64, error) {
		if len(words) != 2 {
			return 0, fmt.Errorf("%s takes one index", words[0])
		}
		return strconv.ParseInt(words[1], 10, 64)
	}

	switch words[0] {
	case "exit", "quit":
		return errQuit
	case "help":
		fmt.Fprintln(e.stdout, shellHelp)
	case "len":
		fmt.Fprintln(e.stdout, r.Len())
	case "get":
		i, err := index()
		if err != nil {
			return err
		}
		rec, err := r.ReadAt(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "%q\n", rec)
	case "frame":
		i, err := index()
		if err != nil {
			return err
		}
		return printFrame(e, r, i)
	case "next":
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(e.stdout, "(end)")
			return nil
		} else if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "%q\n", rec)
	case "rewind":
		r.ResetFP()
	case "info":
		printInfo(e.stdout, r)
	case "reload":
		before := r.Len()
		if err := r.Reload(); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "%d new records\n", r.Len()-before)
	default:
		return fmt.Errorf("unknown command %q, try 'help'", words[0])
	}
	return nil
}
