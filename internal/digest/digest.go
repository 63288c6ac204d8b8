// Package digest provides the pair of independent streaming hash
// accumulators that are fed every byte written to an acquired image.
package digest

import (
	"crypto/md5"  //nolint:gosec // G501: MD5 is the forensic interchange digest, not a security primitive
	"crypto/sha1" //nolint:gosec // G505: SHA-1 is still recorded by EWF containers
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// Default algorithms, matching the MD5 + SHA-256 pair most evidence
// containers and reports expect.
const (
	DefaultPrimary   = "md5"
	DefaultSecondary = "sha256"
)

var (
	ErrUnknownAlgorithm = errors.New("unknown digest algorithm")
	ErrDuplicate        = errors.New("digest pair needs two different algorithms")
)

var algorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
	"blake3": func() hash.Hash { return blake3.New() },
}

// Algorithms returns the supported algorithm names in sorted order.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newHash(name string) (hash.Hash, error) {
	ctor, ok := algorithms[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)",
			ErrUnknownAlgorithm, name, strings.Join(Algorithms(), ", "))
	}
	return ctor(), nil
}

// Sum is one finalized digest.
type Sum struct {
	Algorithm string `yaml:"algorithm"`
	Hex       string `yaml:"hex"`
}

func (s Sum) String() string {
	return s.Algorithm + ":" + s.Hex
}

// Pair feeds every written byte to two independent accumulators. It is
// not safe for concurrent use; the engine owns it for a single run.
type Pair struct {
	names     [2]string
	hashes    [2]hash.Hash
	written   int64
	finalized bool
}

var _ io.Writer = (*Pair)(nil)

// New creates a Pair from two distinct algorithm names.
func New(primary, secondary string) (*Pair, error) {
	primary, secondary = strings.ToLower(primary), strings.ToLower(secondary)
	if primary == secondary {
		return nil, fmt.Errorf("%w: %q twice", ErrDuplicate, primary)
	}
	a, err := newHash(primary)
	if err != nil {
		return nil, err
	}
	b, err := newHash(secondary)
	if err != nil {
		return nil, err
	}
	return &Pair{
		names:  [2]string{primary, secondary},
		hashes: [2]hash.Hash{a, b},
	}, nil
}

// Write updates both accumulators. It never fails; the error is always nil.
func (p *Pair) Write(b []byte) (int, error) {
	if p.finalized {
		panic("digest: write after Sum")
	}
	// hash.Hash.Write never returns an error.
	p.hashes[0].Write(b) //nolint:errcheck
	p.hashes[1].Write(b) //nolint:errcheck
	p.written += int64(len(b))
	return len(b), nil
}

// Written returns the number of bytes fed to the accumulators.
func (p *Pair) Written() int64 { return p.written }

// Names returns the algorithm names in order.
func (p *Pair) Names() [2]string { return p.names }

// Sum finalizes both accumulators. Further writes panic.
func (p *Pair) Sum() [2]Sum {
	p.finalized = true
	return [2]Sum{
		{Algorithm: p.names[0], Hex: hex.EncodeToString(p.hashes[0].Sum(nil))},
		{Algorithm: p.names[1], Hex: hex.EncodeToString(p.hashes[1].Sum(nil))},
	}
}

// File streams the file at path through a fresh Pair and returns the sums.
func File(path, primary, secondary string) ([2]Sum, error) {
	p, err := New(primary, secondary)
	if err != nil {
		return [2]Sum{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return [2]Sum{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 1<<20)
	if _, err := io.CopyBuffer(p, f, buf); err != nil {
		return [2]Sum{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return p.Sum(), nil
}
