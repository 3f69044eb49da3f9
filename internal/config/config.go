// Package config holds the validated, immutable Config record. It is
// constructed once by the CLI layer (cmd/fsp) and passed by reference into
// every TransferEngine operation. The only mutable process-wide state is
// internal/logger's settings and the CLI's parsed flag variables.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config is the read-only parameter set shared by every operation.
type Config struct {
	AccountID       string
	UserID          string
	CanonicalUserID string

	SourceRegion string `validate:"required"`
	DestRegion   string

	// Jobs is the outer shard degree N. Zero means "pick the
	// default for same/cross region", resolved by ResolveJobs.
	Jobs int `validate:"gte=0"`

	FullCopy bool

	Bucket                 string
	ObjectStoreEndpointURL string
	ObjectStoreProfile     string

	// Verbosity ∈ {-1..3}; see logger.Verbosity.
	Verbosity int `validate:"gte=-1,lte=3"`

	DryRun bool

	// NoDeps is preserved for CLI flag compatibility; it is a no-op.
	NoDeps bool
}

var configValidator = validator.New()

// DefaultJobsSameRegion and DefaultJobsCrossRegion are the outer shard
// degrees used when --jobs is not given explicitly.
const (
	DefaultJobsSameRegion  = 16
	DefaultJobsCrossRegion = 27
	SegmentUploadJobs      = 128
)

// ResolveJobs returns the outer shard degree to use, honoring an explicit
// override and otherwise picking the same/cross-region default.
func (c Config) ResolveJobs() int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	if c.SourceRegion != "" && c.DestRegion != "" && c.SourceRegion != c.DestRegion {
		return DefaultJobsCrossRegion
	}
	return DefaultJobsSameRegion
}

// Validate enforces the invariants the CLI layer must satisfy before any
// operation runs. It does not talk to any service; service-level validation
// (snapshot state, ACLs, region existence) is Preflight's job.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// WithDestRegion returns a copy of c with DestRegion set, defaulting to
// SourceRegion when dest is empty.
func (c Config) WithDestRegion(dest string) Config {
	c2 := c
	if dest == "" {
		c2.DestRegion = c.SourceRegion
	} else {
		c2.DestRegion = dest
	}
	return c2
}
