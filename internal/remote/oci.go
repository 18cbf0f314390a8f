package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/sourcegraph/conc/pool"

	"github.com/aweris/dupfind/internal/compression"
)

const DefaultConcurrency = 4

// Label keys set on published report images.
const (
	LabelStrategy = "dev.dupfind.strategy"
	LabelSets     = "dev.dupfind.sets"
	LabelRoot     = "dev.dupfind.root"
)

type OCIRemote struct {
	ref         name.Reference
	auth        Authenticator
	concurrency int
}

// NewOCIRemote creates a remote from a standard Docker ref (e.g., "ghcr.io/org/dupes:nightly")
func NewOCIRemote(imageRef string, auth Authenticator) (*OCIRemote, error) {
	ref, err := name.ParseReference(imageRef, name.WithDefaultTag("latest"))
	if err != nil {
		return nil, fmt.Errorf("invalid image ref %q: %w", imageRef, err)
	}
	return &OCIRemote{ref: ref, auth: auth, concurrency: DefaultConcurrency}, nil
}

// SetConcurrency sets the number of tags pushed in parallel
func (r *OCIRemote) SetConcurrency(n int) {
	if n > 0 {
		r.concurrency = n
	}
}

func (r *OCIRemote) String() string   { return r.ref.String() }
func (r *OCIRemote) Registry() string { return r.ref.Context().RegistryStr() }
func (r *OCIRemote) Tag() string      { return r.ref.Identifier() }

// WithTag returns a new OCIRemote with a different tag
func (r *OCIRemote) WithTag(tag string) (*OCIRemote, error) {
	newRef, err := name.NewTag(r.ref.Context().String()+":"+tag, name.WithDefaultTag("latest"))
	if err != nil {
		return nil, err
	}
	return &OCIRemote{ref: newRef, auth: r.auth, concurrency: r.concurrency}, nil
}

// reportLayer implements v1.Layer with zstd compression for remote transfer
type reportLayer struct {
	compressed   []byte
	uncompressed []byte
}

func newReportLayer(c *compression.Compressor, data []byte) *reportLayer {
	return &reportLayer{
		compressed:   c.Compress(data),
		uncompressed: data,
	}
}

func (l *reportLayer) Digest() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.compressed))
	return h, err
}

func (l *reportLayer) DiffID() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.uncompressed))
	return h, err
}

func (l *reportLayer) Compressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.compressed)), nil
}
func (l *reportLayer) Uncompressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.uncompressed)), nil
}
func (l *reportLayer) Size() (int64, error)                { return int64(len(l.compressed)), nil }
func (l *reportLayer) MediaType() (types.MediaType, error) { return types.OCILayerZStd, nil }

// Push uploads the report to the remote's tag and to every extra tag.
// Tags are pushed in parallel; the first failure cancels the rest.
func (r *OCIRemote) Push(ctx context.Context, report Report, tags ...string) error {
	c, err := compression.NewCompressor(2)
	if err != nil {
		return fmt.Errorf("create compressor: %w", err)
	}
	defer c.Close()

	img, err := r.buildImage(newReportLayer(c, report.Data), report.Labels)
	if err != nil {
		return fmt.Errorf("build image: %w", err)
	}

	targets := []*OCIRemote{r}
	for _, tag := range tags {
		t, err := r.WithTag(tag)
		if err != nil {
			return fmt.Errorf("invalid tag %q: %w", tag, err)
		}
		targets = append(targets, t)
	}

	p := pool.New().WithMaxGoroutines(r.concurrency).WithContext(ctx).WithCancelOnError()
	for _, target := range targets {
		p.Go(func(ctx context.Context) error {
			if err := target.pushImage(ctx, img); err != nil {
				return fmt.Errorf("push %s: %w", target, err)
			}
			return nil
		})
	}
	return p.Wait()
}

func (r *OCIRemote) buildImage(layer v1.Layer, labels map[string]string) (v1.Image, error) {
	img := mutate.MediaType(empty.Image, types.OCIManifestSchema1)
	img = mutate.ConfigMediaType(img, types.OCIConfigJSON)

	img, err := mutate.AppendLayers(img, layer)
	if err != nil {
		return nil, err
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, err
	}

	cfg = cfg.DeepCopy()
	cfg.Config.Labels = labels

	return mutate.ConfigFile(img, cfg)
}

func (r *OCIRemote) pushImage(ctx context.Context, img v1.Image) error {
	options := r.remoteOptions(ctx)
	options = append(options, remote.WithJobs(r.concurrency))
	_, err := retry(ctx, 3, func() (struct{}, error) {
		return struct{}{}, remote.Write(r.ref, img, options...)
	})
	return err
}

// Pull downloads the report published at the remote's ref.
func (r *OCIRemote) Pull(ctx context.Context) (Report, error) {
	img, err := retry(ctx, 3, func() (v1.Image, error) {
		return remote.Image(r.ref, r.remoteOptions(ctx)...)
	})
	if err != nil {
		return Report{}, fmt.Errorf("fetch image: %w", err)
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return Report{}, fmt.Errorf("get config: %w", err)
	}

	layers, err := img.Layers()
	if err != nil {
		return Report{}, fmt.Errorf("get layers: %w", err)
	}
	if len(layers) != 1 {
		return Report{}, fmt.Errorf("expected 1 report layer, got %d", len(layers))
	}

	rc, err := layers[0].Compressed()
	if err != nil {
		return Report{}, fmt.Errorf("read layer: %w", err)
	}
	compressed, err := io.ReadAll(rc)
	if cerr := rc.Close(); cerr != nil {
		return Report{}, fmt.Errorf("close layer: %w", cerr)
	}
	if err != nil {
		return Report{}, fmt.Errorf("read layer: %w", err)
	}

	c, err := compression.NewCompressor(2)
	if err != nil {
		return Report{}, fmt.Errorf("create compressor: %w", err)
	}
	defer c.Close()

	data, err := c.Decompress(compressed)
	if err != nil {
		return Report{}, fmt.Errorf("decompress report: %w", err)
	}

	return Report{Data: data, Labels: cfg.Config.Labels}, nil
}

func (r *OCIRemote) remoteOptions(ctx context.Context) []remote.Option {
	options := []remote.Option{remote.WithContext(ctx)}
	if r.auth != nil {
		username, password, err := r.auth.Authenticate(r.Registry())
		if err == nil && username != "" {
			return append(options, remote.WithAuth(&authn.Basic{
				Username: username,
				Password: password,
			}))
		}
	}
	return append(options, remote.WithAuthFromKeychain(authn.DefaultKeychain))
}

func retry[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := range maxAttempts {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i < maxAttempts-1 {
			delay := time.Duration(1<<i) * 500 * time.Millisecond // 500ms, 1s, 2s, 4s...
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return zero, lastErr
}
