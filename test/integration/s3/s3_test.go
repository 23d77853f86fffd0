//go:build integration

package s3_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/aclgate/pkg/storage"
	s3storage "github.com/marmos91/aclgate/pkg/storage/s3"
	"github.com/marmos91/aclgate/pkg/storage/storetest"
)

// localstackHelper manages the Localstack container for S3 integration tests.
type localstackHelper struct {
	container testcontainers.Container
	endpoint  string
	client    *s3.Client
}

// newLocalstackHelper starts a Localstack container or connects to an existing one.
func newLocalstackHelper(t *testing.T) *localstackHelper {
	t.Helper()
	ctx := context.Background()

	// Check if external Localstack is configured via environment
	if endpoint := os.Getenv("LOCALSTACK_ENDPOINT"); endpoint != "" {
		helper := &localstackHelper{endpoint: endpoint}
		helper.createClient(t)
		return helper
	}

	req := testcontainers.ContainerRequest{
		Image:        "localstack/localstack:3.0",
		ExposedPorts: []string{"4566/tcp"},
		Env: map[string]string{
			"SERVICES":              "s3",
			"DEFAULT_REGION":        "us-east-1",
			"EAGER_SERVICE_LOADING": "1",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4566/tcp"),
			wait.ForHTTP("/_localstack/health").
				WithPort("4566/tcp").
				WithStartupTimeout(60*time.Second),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start localstack container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "4566")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get container port: %v", err)
	}

	helper := &localstackHelper{
		container: container,
		endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
	}
	helper.createClient(t)

	return helper
}

// createClient creates an S3 client configured for Localstack.
func (lh *localstackHelper) createClient(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			"test", "test", "",
		)),
	)
	if err != nil {
		t.Fatalf("failed to load AWS config: %v", err)
	}

	lh.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = &lh.endpoint
		o.UsePathStyle = true
	})
}

// createBucket creates a new S3 bucket.
func (lh *localstackHelper) createBucket(t *testing.T, bucketName string) {
	t.Helper()

	_, err := lh.client.CreateBucket(context.Background(), &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		t.Fatalf("failed to create test bucket: %v", err)
	}
}

// cleanupBucket removes a bucket and all its contents.
func (lh *localstackHelper) cleanupBucket(bucketName string) {
	ctx := context.Background()

	listResp, _ := lh.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucketName),
	})
	if listResp != nil {
		for _, obj := range listResp.Contents {
			_, _ = lh.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(bucketName),
				Key:    obj.Key,
			})
		}
	}

	_, _ = lh.client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucketName),
	})
}

// cleanup terminates the container if we started one.
func (lh *localstackHelper) cleanup() {
	if lh.container != nil {
		_ = lh.container.Terminate(context.Background())
	}
}

// TestS3Storage_Integration runs the storage conformance suite against a
// real S3-compatible service (Localstack via testcontainers). Each subtest
// gets its own key prefix for isolation inside the shared bucket.
func TestS3Storage_Integration(t *testing.T) {
	ctx := context.Background()

	helper := newLocalstackHelper(t)
	defer helper.cleanup()

	bucketName := "aclgate-test-bucket"
	helper.createBucket(t, bucketName)
	defer helper.cleanupBucket(bucketName)

	testCounter := 0
	storetest.RunConformanceSuite(t, func(t *testing.T) storage.Storage {
		testCounter++
		store, err := s3storage.New(ctx, s3storage.Config{
			Client:    helper.client,
			Bucket:    bucketName,
			KeyPrefix: fmt.Sprintf("test-%d/", testCounter),
		})
		if err != nil {
			t.Fatalf("failed to create S3 storage for test %d: %v", testCounter, err)
		}
		return store
	})
}

// TestS3Storage_KeyPrefixIsolation verifies two stores sharing a bucket
// under different prefixes cannot see each other's trees.
func TestS3Storage_KeyPrefixIsolation(t *testing.T) {
	ctx := context.Background()

	helper := newLocalstackHelper(t)
	defer helper.cleanup()

	bucketName := "aclgate-prefix-test"
	helper.createBucket(t, bucketName)
	defer helper.cleanupBucket(bucketName)

	newStore := func(prefix string) storage.Storage {
		store, err := s3storage.New(ctx, s3storage.Config{
			Client:    helper.client,
			Bucket:    bucketName,
			KeyPrefix: prefix,
		})
		if err != nil {
			t.Fatalf("failed to create S3 storage with prefix %q: %v", prefix, err)
		}
		return store
	}

	a := newStore("tenant-a/")
	b := newStore("tenant-b/")

	if err := a.WriteFile(ctx, "/report.txt", []byte("tenant a data")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := b.ReadFile(ctx, "/report.txt"); !storage.IsNotFoundError(err) {
		t.Errorf("expected not-found reading across prefixes, got %v", err)
	}

	entries, err := b.ListDir(ctx, "/")
	if err != nil {
		t.Fatalf("ListDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty listing for tenant-b, got %d entries", len(entries))
	}
}
