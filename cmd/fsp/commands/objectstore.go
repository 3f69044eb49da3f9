package commands

import (
	"context"

	"github.com/awslabs/flexible-snapshot-proxy/internal/config"
	"github.com/awslabs/flexible-snapshot-proxy/pkg/objectstore"
	s3store "github.com/awslabs/flexible-snapshot-proxy/pkg/objectstore/s3"
)

// buildObjectStore constructs the S3-backed archival store used by
// movetos3/getfroms3.
func buildObjectStore(ctx context.Context, cfg config.Config, region string) (objectstore.Store, error) {
	return s3store.NewFromConfig(ctx, s3store.Config{
		Bucket:   cfg.Bucket,
		Region:   region,
		Endpoint: cfg.ObjectStoreEndpointURL,
		Profile:  cfg.ObjectStoreProfile,
	})
}
