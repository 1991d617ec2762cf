// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Command gen-testdata appends random frames to an ICF container, for
// manual testing and benchmarks.
package main

import (
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/bpowers/icf"
	"github.com/bpowers/icf/codec"
	"github.com/bpowers/icf/frame"
)

const (
	prefix    = "pref_"
	suffixLen = 16
	hmacKey   = "d259c7f656caf7f1"
)

// randSource is the subset of *rand.Rand the generator draws from.
type randSource interface {
	Read(p []byte) (int, error)
	Intn(n int) int
	Float32() float32
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		var seedBytes [8]byte
		_, _ = crand.Read(seedBytes[:])
		seed = int64(binary.LittleEndian.Uint64(seedBytes[:]))
	}
	return rand.New(rand.NewSource(seed))
}

func main() {
	out := flag.String("o", "testdata.icf", "container to append to")
	n := flag.Int("n", 100000, "number of frames")
	bunchSize := flag.Int("bunch", icf.DefaultBunchSize, "bunch size in bytes")
	seed := flag.Int64("seed", 0, "random seed (0 picks one)")
	verbose := flag.Bool("v", false, "log each flushed bunch")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := generate(*out, *n, *bunchSize, newRand(*seed), logger); err != nil {
		fmt.Fprintf(os.Stderr, "gen-testdata: %s\n", err)
		os.Exit(1)
	}
}

func generate(path string, n, bunchSize int, rng randSource, logger *slog.Logger) error {
	f, err := icf.Open(path, icf.ModeAppend, icf.WithBunchSize(bunchSize), icf.WithLogger(logger))
	if err != nil {
		return err
	}
	// releases the lock on early returns; Close is idempotent
	defer f.Close()
	reg := codec.NewRegistry()
	if err := reg.Register(codec.Msgpack()); err != nil {
		return err
	}
	h := hmac.New(sha256.New, []byte(hmacKey))

	start := f.Size()
	for i := 0; i < n; i++ {
		var buf [suffixLen / 2]byte
		if _, err := rng.Read(buf[:]); err != nil {
			return err
		}
		value := fmt.Sprintf("%s%x", prefix, buf)
		h.Reset()
		h.Write([]byte(value))

		samples := make([]float32, 1+rng.Intn(64))
		for j := range samples {
			samples[j] = rng.Float32()
		}
		arr, err := codec.NewArray(nil, samples)
		if err != nil {
			return err
		}

		fr := frame.New(reg)
		fr.Add("index", codec.Int(start+int64(i)))
		fr.Add("key", codec.Text(hex.EncodeToString(h.Sum(nil))))
		fr.Add("value", codec.Text(value))
		fr.Add("samples", arr)
		fr.Add("meta", codec.NewMsgpack(map[string]any{"seed_byte": buf[0], "even": i%2 == 0}))
		rec, err := fr.Serialize()
		if err != nil {
			return err
		}
		if err := f.Write(rec); err != nil {
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("wrote frames", "path", path, "frames", n, "total", start+int64(n))
	return nil
}
