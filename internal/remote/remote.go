// Package remote publishes duplicate reports to OCI registries.
//
// Based on go-containerregistry patterns:
// - Authentication via keychain, or static credentials
// - One zstd layer per report, metadata in config labels
// - Standard OCI distribution spec
package remote

import "context"

// Report is a rendered report and the labels stored alongside it.
type Report struct {
	Data   []byte
	Labels map[string]string
}

// Remote handles OCI registry operations.
type Remote interface {
	// Push uploads a report to the registry, optionally under extra tags.
	Push(ctx context.Context, report Report, tags ...string) error

	// Pull downloads a report from the registry.
	Pull(ctx context.Context) (Report, error)
}

var _ Remote = (*OCIRemote)(nil)
