package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dreamwise/dreamwise-api/internal/core/domain"
	"github.com/dreamwise/dreamwise-api/internal/core/port"
	"github.com/dreamwise/dreamwise-api/internal/infra/config"
)

var allowedContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

type presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// AvatarStore hands out presigned PUT URLs for avatar images in an
// S3-compatible bucket.
type AvatarStore struct {
	presigner presigner
	bucket    string
	publicURL string
	ttl       time.Duration
	now       func() time.Time
}

// NewAvatarStore builds an S3 client from static credentials. A custom
// endpoint switches to path-style addressing for MinIO and similar servers.
func NewAvatarStore(ctx context.Context, cfg config.StorageSettings) (*AvatarStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := cfg.PublicBaseURL
	if publicURL == "" {
		publicURL = defaultPublicURL(cfg)
	}

	return newAvatarStore(s3.NewPresignClient(client), cfg.Bucket, publicURL, cfg.PresignTTL), nil
}

func newAvatarStore(p presigner, bucket, publicURL string, ttl time.Duration) *AvatarStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &AvatarStore{
		presigner: p,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		ttl:       ttl,
		now:       time.Now,
	}
}

// PresignUpload returns a one-off upload location under avatars/<ownerID>/.
func (s *AvatarStore) PresignUpload(ctx context.Context, ownerID, contentType string) (domain.UploadTarget, error) {
	ext, ok := allowedContentTypes[strings.ToLower(contentType)]
	if !ok {
		return domain.UploadTarget{}, fmt.Errorf("%w: %s", port.ErrUnsupportedContentType, contentType)
	}

	key := fmt.Sprintf("avatars/%s/%s.%s", ownerID, uuid.NewString(), ext)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return domain.UploadTarget{}, fmt.Errorf("presign avatar upload: %w", err)
	}

	return domain.UploadTarget{
		Key:       key,
		UploadURL: req.URL,
		PublicURL: s.publicURL + "/" + key,
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	}, nil
}

func defaultPublicURL(cfg config.StorageSettings) string {
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

var _ port.FileStore = (*AvatarStore)(nil)
