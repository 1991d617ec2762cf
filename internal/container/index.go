// Copyright 2026 The icf Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package container

import (
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"sort"

	"github.com/bpowers/icf/compress"
	"github.com/bpowers/icf/internal/bitset"
	"github.com/bpowers/icf/internal/bunchbuf"
)

// bunchRef is the in-memory index entry of one bunch.
type bunchRef struct {
	first   int64   // global index of the bunch's first record
	offsets []int64 // offsets[i] is where record i starts in the raw payload; one extra entry marks the end
	info    *bunchInfo
	comp    compress.Compressor // nil when the payload is stored raw
	hasCRC  bool
}

func (b *bunchRef) count() int64 {
	return int64(len(b.offsets) - 1)
}

// bunchIndex maps record indices to bunches of a SOF or ICF file.
type bunchIndex struct {
	r        io.ReaderAt
	lay      layout
	logger   *slog.Logger
	verify   bool
	subs     []*subFile
	bunches  []bunchRef
	n        int64
	end      int64 // end of the last complete bunch or header
	cache    *bunchbuf.Buffer[int64, []byte]
	verified *bitset.Bitset // bunches whose checksum has been checked
}

func newBunchIndex(r io.ReaderAt, lay layout, cfg *Config) *bunchIndex {
	return &bunchIndex{
		r:        r,
		lay:      lay,
		logger:   cfg.Logger,
		verify:   cfg.VerifyChecksums,
		cache:    bunchbuf.New[int64, []byte](cfg.CacheSize),
		verified: bitset.New(0),
	}
}

// build scans the first size bytes of the file and replaces the index.
// Bunches are immutable once written, so cached payloads and verified
// bits carry over when the old bunches are still the prefix.
func (ix *bunchIndex) build(size int64) error {
	sc := scanner{r: ix.r, lay: ix.lay, logger: ix.logger}
	res, err := sc.scan(size)
	if err != nil {
		return err
	}
	old := ix.bunches
	ix.subs = nil
	ix.bunches = nil
	ix.n = 0
	ix.end = res.end
	for _, sf := range res.subs {
		ix.addSubFile(sf)
		for _, b := range sf.bunches {
			ix.addBunch(sf, b)
		}
	}

	samePrefix := len(old) <= len(ix.bunches)
	for i := 0; samePrefix && i < len(old); i++ {
		samePrefix = old[i].info.dataStart == ix.bunches[i].info.dataStart
	}
	if !samePrefix {
		ix.cache.Reset()
		ix.verified = bitset.New(int64(len(ix.bunches)))
	}
	ix.verified.Grow(int64(len(ix.bunches)))
	return nil
}

func (ix *bunchIndex) addSubFile(sf *subFile) {
	ix.subs = append(ix.subs, sf)
	if sf.end() > ix.end {
		ix.end = sf.end()
	}
}

// addBunch appends b, which must belong to the last sub-file, to the index.
func (ix *bunchIndex) addBunch(sf *subFile, b *bunchInfo) {
	ref := bunchRef{
		first:   ix.n,
		offsets: make([]int64, len(b.sizes)+1),
		info:    b,
		hasCRC:  ix.lay.protocol() == ProtocolSOF,
	}
	for i, size := range b.sizes {
		ref.offsets[i+1] = ref.offsets[i] + int64(size)
	}
	if sf.comp != nil && sf.comp.ID() != compress.IDNone {
		ref.comp = sf.comp
	}
	ix.bunches = append(ix.bunches, ref)
	ix.n += ref.count()
	if b.end > ix.end {
		ix.end = b.end
	}
	ix.verified.Grow(int64(len(ix.bunches)))
}

// locate returns the position of the bunch holding record i.
func (ix *bunchIndex) locate(i int64) (int, error) {
	if i < 0 || i >= ix.n {
		return 0, fmt.Errorf("record %d of %d: %w", i, ix.n, ErrOutOfRange)
	}
	bi := sort.Search(len(ix.bunches), func(j int) bool {
		return ix.bunches[j].first > i
	}) - 1
	return bi, nil
}

func (ix *bunchIndex) readAt(i int64) ([]byte, error) {
	bi, err := ix.locate(i)
	if err != nil {
		return nil, err
	}
	b := &ix.bunches[bi]
	j := i - b.first
	start, end := b.offsets[j], b.offsets[j+1]

	if b.comp == nil && (!ix.verify || !b.hasCRC || ix.verified.IsSet(int64(bi))) {
		out := make([]byte, end-start)
		if _, err := ix.r.ReadAt(out, b.info.dataStart+start); err != nil {
			return nil, fmt.Errorf("ReadAt(record %d @ %d): %w", i, b.info.dataStart+start, err)
		}
		return out, nil
	}

	payload, err := ix.payload(bi)
	if err != nil {
		return nil, err
	}
	out := make([]byte, end-start)
	copy(out, payload[start:end])
	return out, nil
}

// payload returns the raw (decompressed) payload of bunch bi, checking
// its checksum on first load.
func (ix *bunchIndex) payload(bi int) ([]byte, error) {
	b := &ix.bunches[bi]
	if p, ok := ix.cache.Get(b.info.dataStart); ok {
		return p, nil
	}
	stored := make([]byte, b.info.stored)
	if _, err := ix.r.ReadAt(stored, b.info.dataStart); err != nil {
		return nil, fmt.Errorf("ReadAt(bunch @ %d): %w", b.info.dataStart, err)
	}
	if b.hasCRC && (ix.verify || b.comp != nil) {
		if sum := crc32.ChecksumIEEE(stored); sum != b.info.crc {
			return nil, corruptf(b.info.dataStart, "bunch %d checksum %08x, trailer says %08x", b.info.number, sum, b.info.crc)
		}
		ix.verified.Set(int64(bi))
	}
	if b.comp == nil {
		// uncompressed bunches are only loaded to verify them; later
		// reads go straight to the file
		return stored, nil
	}
	want := b.offsets[len(b.offsets)-1]
	raw, err := b.comp.Decompress(stored, int(want))
	if err != nil {
		return nil, corruptf(b.info.dataStart, "bunch %d: %v", b.info.number, err)
	}
	if int64(len(raw)) != want {
		return nil, corruptf(b.info.dataStart, "bunch %d decompressed to %d bytes, expected %d", b.info.number, len(raw), want)
	}
	ix.cache.Put(b.info.dataStart, raw)
	return raw, nil
}

// verifyAll checks the checksum of every bunch that has one and, for
// compressed bunches, that the payload decompresses.
func (ix *bunchIndex) verifyAll() error {
	for bi := range ix.bunches {
		b := &ix.bunches[bi]
		if !b.hasCRC && b.comp == nil {
			continue
		}
		stored := make([]byte, b.info.stored)
		if _, err := ix.r.ReadAt(stored, b.info.dataStart); err != nil {
			return fmt.Errorf("ReadAt(bunch @ %d): %w", b.info.dataStart, err)
		}
		if b.hasCRC {
			if sum := crc32.ChecksumIEEE(stored); sum != b.info.crc {
				return corruptf(b.info.dataStart, "bunch %d checksum %08x, trailer says %08x", b.info.number, sum, b.info.crc)
			}
			ix.verified.Set(int64(bi))
		}
		if b.comp != nil {
			want := b.offsets[len(b.offsets)-1]
			raw, err := b.comp.Decompress(stored, int(want))
			if err != nil {
				return corruptf(b.info.dataStart, "bunch %d: %v", b.info.number, err)
			}
			if int64(len(raw)) != want {
				return corruptf(b.info.dataStart, "bunch %d decompressed to %d bytes, expected %d", b.info.number, len(raw), want)
			}
		}
	}
	return nil
}
