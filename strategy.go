package dupfind

import (
	"encoding/hex"
	"fmt"
	"math/bits"
	"strings"

	"github.com/spf13/afero"
)

// StrategyKind selects how files are fingerprinted. Exactly one kind is
// active for a run.
type StrategyKind string

const (
	Exact      StrategyKind = "exact"
	Header     StrategyKind = "header"
	Perceptual StrategyKind = "perceptual"
)

// Strategy defaults
const (
	DefaultHeaderLength = 512
	DefaultHashSize     = 8
)

// ParseStrategy maps a selector to a StrategyKind. The legacy selectors
// "xxh" and "img" are accepted as aliases of exact and perceptual.
func ParseStrategy(name string) (StrategyKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "exact", "xxh":
		return Exact, nil
	case "header":
		return Header, nil
	case "perceptual", "img":
		return Perceptual, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// StrategyConfig holds the strategy-specific parameters. Fields that do not
// apply to the selected kind are ignored.
type StrategyConfig struct {
	// HeaderLength is the number of leading bytes compared by the header strategy.
	HeaderLength int

	// HashSize is the side of the perceptual hash grid; the hash has
	// HashSize*HashSize bits.
	HashSize int

	// Tolerance is the Hamming distance under which two perceptual
	// fingerprints are considered the same image.
	Tolerance int
}

// DefaultStrategyConfig returns the parameters used when none are given.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		HeaderLength: DefaultHeaderLength,
		HashSize:     DefaultHashSize,
	}
}

// Strategy is a validated fingerprinting strategy. It holds no mutable
// state and may be shared by any number of goroutines.
type Strategy struct {
	kind StrategyKind
	cfg  StrategyConfig
}

// NewStrategy validates cfg for kind and returns the strategy.
func NewStrategy(kind StrategyKind, cfg StrategyConfig) (Strategy, error) {
	switch kind {
	case Exact:
	case Header:
		if cfg.HeaderLength <= 0 {
			return Strategy{}, fmt.Errorf("%w: header length must be positive, got %d", ErrInvalidOption, cfg.HeaderLength)
		}
	case Perceptual:
		if cfg.HashSize <= 0 || cfg.HashSize%8 != 0 {
			return Strategy{}, fmt.Errorf("%w: hash size must be a positive multiple of 8, got %d", ErrInvalidOption, cfg.HashSize)
		}
		if cfg.Tolerance < 0 || cfg.Tolerance > cfg.HashSize*cfg.HashSize {
			return Strategy{}, fmt.Errorf("%w: tolerance %d out of range for %d-bit hash", ErrInvalidOption, cfg.Tolerance, cfg.HashSize*cfg.HashSize)
		}
	default:
		return Strategy{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, kind)
	}
	return Strategy{kind: kind, cfg: cfg}, nil
}

// Kind returns the strategy kind.
func (s Strategy) Kind() StrategyKind { return s.kind }

// Tolerance returns the Hamming tolerance used when grouping. It is always
// zero for strategies other than perceptual.
func (s Strategy) Tolerance() int {
	if s.kind != Perceptual {
		return 0
	}
	return s.cfg.Tolerance
}

// Fingerprint computes the fingerprint of the file at path. Failures are
// returned as *FileError.
func (s Strategy) Fingerprint(fsys afero.Fs, path string) (Fingerprint, error) {
	switch s.kind {
	case Exact:
		return exactFingerprint(fsys, path)
	case Header:
		return headerFingerprint(fsys, path, s.cfg.HeaderLength)
	case Perceptual:
		return perceptualFingerprint(fsys, path, s.cfg.HashSize)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s.kind)
	}
}

// Fingerprint is the strategy-specific digest of a file's content, stored
// as raw bytes so it can key a map directly.
type Fingerprint string

func (f Fingerprint) String() string {
	return hex.EncodeToString([]byte(f))
}

// Distance returns the Hamming distance between two fingerprints of equal
// length.
func (f Fingerprint) Distance(other Fingerprint) (int, error) {
	if len(f) != len(other) {
		return 0, fmt.Errorf("fingerprint length mismatch: %d != %d", len(f), len(other))
	}
	d := 0
	for i := 0; i < len(f); i++ {
		d += bits.OnesCount8(f[i] ^ other[i])
	}
	return d, nil
}
