package s3uploader

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type Uploader struct {
	client *s3.Client
	region string

	// publicBaseURL overrides the default virtual-hosted address, e.g. when
	// the bucket is fronted by a CDN.
	publicBaseURL string
}

func New(accessKey, secretKey, region, publicBaseURL string) *Uploader {
	creds := credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(creds),
		config.WithRegion(region),
	)
	if err != nil {
		return nil
	}

	client := s3.NewFromConfig(cfg)

	return &Uploader{
		client:        client,
		region:        region,
		publicBaseURL: publicBaseURL,
	}
}

// Upload stores body under key with the given content type and marks the
// object publicly readable.
func (u *Uploader) Upload(ctx context.Context, bucketName, key, contentType string, body io.Reader) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucketName),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	}

	_, err := u.client.PutObject(ctx, input)
	if err != nil {
		return err
	}

	return nil
}

// PublicURL returns the durable public address of an uploaded object.
func (u *Uploader) PublicURL(bucketName, key string) string {
	if u.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s", u.publicBaseURL, key)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucketName, u.region, key)
}
