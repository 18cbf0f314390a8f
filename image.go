package dupfind

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"io"

	// Registered decoders; anything else is a DecodeError.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/corona10/goimagehash"
	"github.com/spf13/afero"
)

// perceptualFingerprint decodes the file and computes a size x size
// difference (gradient) hash, packed big-endian.
func perceptualFingerprint(fsys afero.Fs, path string, size int) (Fingerprint, error) {
	file, err := fsys.Open(path)
	if err != nil {
		return "", ioError(path, err)
	}
	defer file.Close()

	src := &readRecorder{r: file}
	img, _, err := image.Decode(bufio.NewReader(src))
	if err != nil {
		if src.err != nil {
			return "", ioError(path, fmt.Errorf("read: %w", src.err))
		}
		return "", decodeError(path, err)
	}

	hash, err := goimagehash.ExtDifferenceHash(img, size, size)
	if err != nil {
		return "", decodeError(path, fmt.Errorf("hash: %w", err))
	}

	words := hash.GetHash()
	out := make([]byte, 8*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint64(out[i*8:], w)
	}
	return Fingerprint(out), nil
}

// readRecorder keeps the first non-EOF read error. image.Decode reports a
// failed format sniff as image.ErrFormat and loses the cause.
type readRecorder struct {
	r   io.Reader
	err error
}

func (r *readRecorder) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF && r.err == nil {
		r.err = err
	}
	return n, err
}
