package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PhotoStore holds key photos in an R2 bucket. R2 speaks the S3 API, so this
// is a plain S3 client pointed at the R2 endpoint.
type PhotoStore struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

// Config carries the R2 connection settings.
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	PublicBaseURL string
}

// NewPhotoStore builds the S3 client for R2. Returns nil when the endpoint is
// unset so photo endpoints can degrade instead of failing startup.
func NewPhotoStore(ctx context.Context, c Config) (*PhotoStore, error) {
	if c.Endpoint == "" {
		return nil, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretKey,
			"",
		)),
		awsconfig.WithRegion(c.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to configure S3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.Endpoint)
	})

	return &PhotoStore{
		client:        client,
		bucket:        c.Bucket,
		publicBaseURL: strings.TrimRight(c.PublicBaseURL, "/"),
	}, nil
}

// UploadKeyPhoto stores one photo and returns its public URL. Slot is the
// photo's position on the key record (0 to 2).
func (s *PhotoStore) UploadKeyPhoto(ctx context.Context, dealershipID, keyID string, slot int, contentType string, body io.Reader) (string, error) {
	ext, err := extensionFor(contentType)
	if err != nil {
		return "", err
	}

	objectKey := fmt.Sprintf("dealerships/%s/keys/%s/%d%s", dealershipID, keyID, slot, ext)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}

	return s.publicBaseURL + "/" + objectKey, nil
}

// DeleteKeyPhoto removes the object behind a stored photo URL.
func (s *PhotoStore) DeleteKeyPhoto(ctx context.Context, photoURL string) error {
	objectKey, err := s.objectKeyFromURL(photoURL)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return nil
}

func (s *PhotoStore) objectKeyFromURL(photoURL string) (string, error) {
	prefix := s.publicBaseURL + "/"
	if !strings.HasPrefix(photoURL, prefix) {
		return "", fmt.Errorf("photo URL %q is not under the configured public base", photoURL)
	}
	return strings.TrimPrefix(photoURL, prefix), nil
}

func extensionFor(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/webp":
		return ".webp", nil
	default:
		return "", fmt.Errorf("unsupported photo content type %q", contentType)
	}
}
