// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"ferret-seal/internal/version"
)

// S3Client stores archives in S3 or an S3-compatible service
type S3Client struct {
	client *s3.Client
}

// NewS3 creates an S3 client honoring env configuration for MinIO and LocalStack.
// Env support: AWS_REGION, AWS_ENDPOINT_URL_S3, AWS_S3_FORCE_PATH_STYLE.
func NewS3(ctx context.Context) (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithAppID(version.AppID()))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep := os.Getenv("AWS_ENDPOINT_URL_S3"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
		if strings.EqualFold(os.Getenv("AWS_S3_FORCE_PATH_STYLE"), "true") {
			o.UsePathStyle = true
		}
	})
	return &S3Client{client: client}, nil
}

func parseS3(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", errors.New("invalid s3 uri")
	}
	return
}

// Get opens the stored archive at uri. The size is the object's stored
// content length; a missing key is reported as ErrObjectNotFound.
func (s *S3Client) Get(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	bucket, key, err := parseS3(uri)
	if err != nil {
		return nil, 0, err
	}
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, 0, fmt.Errorf("%w: %s", ErrObjectNotFound, uri)
		}
		return nil, 0, fmt.Errorf("failed to read %s: %w", uri, err)
	}
	return obj.Body, aws.ToInt64(obj.ContentLength), nil
}

// Put uploads body with server-side encryption and a zip content type
func (s *S3Client) Put(ctx context.Context, uri string, body io.Reader) (string, error) {
	b, k, err := parseS3(uri)
	if err != nil {
		return "", err
	}
	uploader := manager.NewUploader(s.client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               &b,
		Key:                  &k,
		Body:                 body,
		ContentType:          aws.String("application/zip"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", err
	}
	return uri, nil
}
