package backend

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// SessionFactory produces authenticated handles to the model-hosting
// backend from a region + key pair. It is stateless and reusable; no
// network call happens at construction time. Config resolution loads
// service descriptors from disk, so callers on a latency-sensitive path
// should run it through the task queue.
type SessionFactory struct {
	accessKeyID     string
	secretAccessKey string
	region          string
}

// NewSessionFactory creates a new factory from static credentials.
func NewSessionFactory(accessKeyID, secretAccessKey, region string) *SessionFactory {
	return &SessionFactory{
		accessKeyID:     accessKeyID,
		secretAccessKey: secretAccessKey,
		region:          region,
	}
}

// Region returns the configured backend region.
func (f *SessionFactory) Region() string {
	return f.region
}

// AccessKeyID returns the configured access key id.
func (f *SessionFactory) AccessKeyID() string {
	return f.accessKeyID
}

// SecretAccessKey returns the configured secret access key.
func (f *SessionFactory) SecretAccessKey() string {
	return f.secretAccessKey
}

// Config resolves an aws.Config bound to the factory's static credentials.
func (f *SessionFactory) Config(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(f.region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(f.accessKeyID, f.secretAccessKey, ""),
		),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to resolve backend config: %w", err)
	}
	return cfg, nil
}

// NewModelClient creates a model runtime client for the configured backend.
func (f *SessionFactory) NewModelClient(ctx context.Context) (ModelClient, error) {
	cfg, err := f.Config(ctx)
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(cfg), nil
}
