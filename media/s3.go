// Copyright 2025 AI Farm
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package media stores livestock photos on S3. Objects are keyed under
// the tenant database name, so one bucket serves all tenants without
// mixing their files.
package media

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultPresignExpiry is how long generated download URLs stay valid.
const DefaultPresignExpiry = time.Hour

// Config holds S3 settings. An empty Bucket disables the store.
type Config struct {
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	ForcePathStyle  bool          `yaml:"force_path_style"`
	PresignExpiry   time.Duration `yaml:"presign_expiry"`
}

// Store uploads and serves photo objects from one S3 bucket.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

// New creates a Store and verifies the bucket is reachable.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("media: bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	// Explicit credentials if provided, otherwise the default chain
	// (IAM role, env, shared config).
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		optFns = append(optFns, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("media: failed to load AWS config: %w", err)
	}

	s3Options := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("media: failed to verify bucket %q: %w", cfg.Bucket, err)
	}

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}

	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		expiry:  expiry,
	}, nil
}

// ObjectKey builds the per-tenant object key for an animal photo.
func ObjectKey(tenantDB, animalID, filename string) string {
	if filename == "" {
		filename = "photo"
	}
	return path.Join(tenantDB, "livestock", animalID, filename)
}

// Put uploads body under key.
func (s *Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("media: failed to upload %q: %w", key, err)
	}
	return nil
}

// PresignGet returns a time-limited download URL for key.
func (s *Store) PresignGet(ctx context.Context, key string) (string, error) {
	presigned, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("media: failed to presign %q: %w", key, err)
	}
	return presigned.URL, nil
}

// Delete removes the object under key. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("media: failed to delete %q: %w", key, err)
	}
	return nil
}
