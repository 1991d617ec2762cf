// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgryski/go-farm"

	"github.com/bpowers/icf"
	"github.com/bpowers/icf/codec"
	"github.com/bpowers/icf/frame"
)

func (e *env) open(path string) (*icf.Reader, error) {
	return icf.OpenReader(path, icf.WithLogger(e.logger))
}

// oneFile parses flags of a command that takes a single FILE argument.
func oneFile(fs *flag.FlagSet, args []string) (string, error) {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("%s: %v: %w", fs.Name(), err, errUsage)
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s takes one file: %w", fs.Name(), errUsage)
	}
	return fs.Arg(0), nil
}

func runInfo(e *env, args []string) error {
	path, err := oneFile(flag.NewFlagSet("info", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	r, err := e.open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	printInfo(e.stdout, r)
	return nil
}

func printInfo(w io.Writer, r *icf.Reader) {
	fmt.Fprintf(w, "protocol:   %s\n", r.Protocol())
	if r.Protocol() == icf.ProtocolLegacy {
		fmt.Fprintf(w, "custom:     %#x\n", r.CustomHeader())
	} else {
		fmt.Fprintf(w, "created:    %s\n", r.Timestamp().UTC().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "identifier: %q\n", r.IdentifierExt())
	}
	if ext := r.HeaderExt(); len(ext) > 0 {
		fmt.Fprintf(w, "header ext: %q\n", ext)
	}
	fmt.Fprintf(w, "records:    %d\n", r.Len())
	fmt.Fprintf(w, "bunches:    %d\n", r.Bunches())
	fmt.Fprintf(w, "valid size: %d\n", r.ValidSize())

	subs := r.SubFiles()
	if len(subs) < 2 {
		return
	}
	fmt.Fprintf(w, "sub-files:\n")
	for i, sf := range subs {
		fmt.Fprintf(w, "  %d: offset=%d compressor=%d bunches=%d records=%d\n",
			i, sf.Offset, sf.Compressor, sf.Bunches, sf.Records)
	}
}

func runCat(e *env, args []string) error {
	fs := flag.NewFlagSet("cat", flag.ContinueOnError)
	n := fs.Int64("n", -1, "number of records to print (-1 for all)")
	from := fs.Int64("from", 0, "index of the first record")
	raw := fs.Bool("raw", false, "write records unquoted, one per line")
	path, err := oneFile(fs, args)
	if err != nil {
		return err
	}
	r, err := e.open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	end := r.Len()
	if *n >= 0 && *from+*n < end {
		end = *from + *n
	}
	for i := *from; i < end; i++ {
		rec, err := r.ReadAt(i)
		if err != nil {
			return err
		}
		if *raw {
			_, err = fmt.Fprintf(e.stdout, "%s\n", rec)
		} else {
			_, err = fmt.Fprintf(e.stdout, "%d\t%q\n", i, rec)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// runSum prints a fingerprint per record and one for the whole
// sequence, so two containers can be compared regardless of protocol,
// compression or bunching.
func runSum(e *env, args []string) error {
	path, err := oneFile(flag.NewFlagSet("sum", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	r, err := e.open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	var total uint64
	for i := int64(0); i < r.Len(); i++ {
		rec, err := r.ReadAt(i)
		if err != nil {
			return err
		}
		total = farm.Hash64WithSeed(rec, total)
		fmt.Fprintf(e.stdout, "%d\t%016x\n", i, farm.Fingerprint64(rec))
	}
	fmt.Fprintf(e.stdout, "total\t%016x\t%d records\n", total, r.Len())
	return nil
}

func runVerify(e *env, args []string) error {
	path, err := oneFile(flag.NewFlagSet("verify", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	r, err := e.open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := r.Verify(); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "ok: %d records\n", r.Len())
	return nil
}

func runFrame(e *env, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("frame takes a file and an index: %w", errUsage)
	}
	i, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("index %q: %w", args[1], errUsage)
	}
	r, err := e.open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()
	return printFrame(e, r, i)
}

func newRegistry() *codec.Registry {
	reg := codec.NewRegistry()
	if err := reg.Register(codec.Msgpack()); err != nil {
		panic(err)
	}
	return reg
}

func printFrame(e *env, r *icf.Reader, i int64) error {
	rec, err := r.ReadAt(i)
	if err != nil {
		return err
	}
	fr, err := frame.Deserialize(rec, newRegistry(), frame.WithLogger(e.logger))
	if err != nil {
		return err
	}
	for _, key := range fr.Keys() {
		slot, _ := fr.Get(key)
		name := slot.Codec
		if slot.Module != "" {
			name = slot.Module + "." + slot.Codec
		}
		if slot.IsRaw() {
			fmt.Fprintf(e.stdout, "%s\t%s\t<%d undecoded bytes>\n", key, name, len(slot.Raw))
			continue
		}
		fmt.Fprintf(e.stdout, "%s\t%s\t%s\n", key, name, formatValue(slot.Value))
	}
	return nil
}

const maxShownBytes = 32

func formatValue(v codec.Value) string {
	switch x := v.(type) {
	case codec.Text:
		return strconv.Quote(string(x))
	case codec.Bytes:
		if len(x) > maxShownBytes {
			return fmt.Sprintf("%s... (%d bytes)", hex.EncodeToString(x[:maxShownBytes]), len(x))
		}
		return hex.EncodeToString(x)
	case codec.Int:
		return strconv.FormatInt(int64(x), 10)
	case codec.Float:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case codec.Complex:
		return strconv.FormatComplex(complex128(x), 'g', -1, 128)
	case codec.Array:
		return fmt.Sprintf("%s%v", x.DType, x.Shape)
	case codec.Sequence:
		items := make([]string, len(x.Items))
		for i, item := range x.Items {
			items[i] = formatValue(item)
		}
		open, end := "[", "]"
		switch x.Type {
		case codec.Tuple:
			open, end = "(", ")"
		case codec.Set:
			open, end = "{", "}"
		}
		return open + strings.Join(items, ", ") + end
	case codec.Ext:
		return fmt.Sprintf("%v", x.Value)
	}
	return fmt.Sprintf("%v", v)
}

// runConcat joins containers of one protocol into a new file.  The
// result is written next to OUT and renamed into place once it reads
// back with the expected number of records.
func runConcat(e *env, args []string) error {
	fs := flag.NewFlagSet("concat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	out := fs.String("o", "", "output file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("concat: %v: %w", err, errUsage)
	}
	if *out == "" || fs.NArg() == 0 {
		return fmt.Errorf("concat needs -o and at least one input: %w", errUsage)
	}

	var protocol icf.Protocol
	var want int64
	for i, path := range fs.Args() {
		r, err := e.open(path)
		if err != nil {
			return err
		}
		p, n, valid := r.Protocol(), r.Len(), r.ValidSize()
		_ = r.Close()
		if p == icf.ProtocolLegacy {
			return fmt.Errorf("%s: legacy containers can't be concatenated: %w", path, icf.ErrProtocolMismatch)
		}
		if i > 0 && p != protocol {
			return fmt.Errorf("%s is %s, %s is %s: %w", fs.Arg(0), protocol, path, p, icf.ErrProtocolMismatch)
		}
		if st, err := os.Stat(path); err == nil && st.Size() != valid {
			return fmt.Errorf("%s has %d bytes of incomplete data at its end", path, st.Size()-valid)
		}
		protocol = p
		want += n
	}

	dir := filepath.Dir(*out)
	tmp, err := os.CreateTemp(dir, "icf-concat.*.tmp")
	if err != nil {
		return fmt.Errorf("CreateTemp failed (may need permissions for dir %q): %w", dir, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	for _, path := range fs.Args() {
		if err := appendFile(tmp, path); err != nil {
			_ = tmp.Close()
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tmp.Close: %w", err)
	}

	r, err := e.open(tmp.Name())
	if err != nil {
		return err
	}
	got := r.Len()
	_ = r.Close()
	if got != want {
		return fmt.Errorf("concatenation holds %d records, expected %d: %w", got, want, icf.ErrCorruption)
	}
	if err := os.Rename(tmp.Name(), *out); err != nil {
		return fmt.Errorf("os.Rename: %w", err)
	}
	e.logger.Info("concatenated containers", "inputs", fs.NArg(), "records", got, "out", *out)
	return nil
}

func appendFile(dst io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("os.Open(%s): %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("copying %s: %w", path, err)
	}
	return nil
}

var errQuit = errors.New("quit")
