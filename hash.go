package dupfind

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

const (
	// exactSeed is fixed so fingerprints are reproducible across runs.
	exactSeed      = 0x1234_5678
	exactChunkSize = 8 * 1024
)

// exactFingerprint streams the file through a seeded xxHash64 and returns
// the 8-byte little-endian sum.
func exactFingerprint(fsys afero.Fs, path string) (Fingerprint, error) {
	file, err := fsys.Open(path)
	if err != nil {
		return "", ioError(path, err)
	}
	defer file.Close()

	hasher := xxhash.NewWithSeed(exactSeed)
	buf := make([]byte, exactChunkSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", ioError(path, fmt.Errorf("read: %w", err))
		}
	}

	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], hasher.Sum64())
	return Fingerprint(sum[:]), nil
}

// headerFingerprint returns the first n bytes of the file. Shorter files
// yield their whole content.
func headerFingerprint(fsys afero.Fs, path string, n int) (Fingerprint, error) {
	file, err := fsys.Open(path)
	if err != nil {
		return "", ioError(path, err)
	}
	defer file.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", ioError(path, fmt.Errorf("read: %w", err))
	}
	return Fingerprint(buf[:read]), nil
}
