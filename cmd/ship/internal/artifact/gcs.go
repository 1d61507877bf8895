// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// =============================================================================
// GCS Uploader
// =============================================================================

// GCSConfig configures a Google Cloud Storage uploader.
type GCSConfig struct {
	// Bucket is the destination bucket name. Required.
	Bucket string

	// Prefix is prepended to every object key ("gig-router/builds").
	Prefix string

	// CredentialsFile is a service account key path. Empty means
	// ambient credentials (workload identity, gcloud auth).
	CredentialsFile string
}

// GCSUploader implements Uploader against a GCS bucket.
type GCSUploader struct {
	storageClient *storage.Client
	bucket        string
	prefix        string
}

// NewGCSUploader creates an uploader for the configured bucket.
//
// # Description
//
// When a service account key path is configured it must exist before
// the storage client is built; a missing key otherwise surfaces much
// later as an opaque token error on the first upload.
//
// # Inputs
//
//   - ctx: Governs credential exchange during client construction.
//   - config: Bucket, optional key prefix, optional key file path.
//
// # Outputs
//
//   - *GCSUploader: Ready to upload. Callers own Close.
//   - error: Non-nil on missing bucket, missing key file, or
//     unparseable credentials.
func NewGCSUploader(ctx context.Context, config GCSConfig) (*GCSUploader, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("%w: gcs bucket is required", ErrInvalidOptions)
	}

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		if _, err := os.Stat(config.CredentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s. "+
				"Provide a valid key file or leave the path empty to use ambient credentials",
				config.CredentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	storageClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &GCSUploader{
		storageClient: storageClient,
		bucket:        config.Bucket,
		prefix:        config.Prefix,
	}, nil
}

// Compile-time check that GCSUploader implements Uploader.
var _ Uploader = (*GCSUploader)(nil)

// Name implements Uploader.
func (g *GCSUploader) Name() string {
	return "gcs"
}

// Upload implements Uploader.
func (g *GCSUploader) Upload(ctx context.Context, localPath, remotePath string) error {
	cleaned, err := cleanRemotePath(remotePath)
	if err != nil {
		return err
	}
	objectKey := cleaned
	if g.prefix != "" {
		objectKey = path.Join(g.prefix, cleaned)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	wc := g.storageClient.Bucket(g.bucket).Object(objectKey).NewWriter(ctx)
	wc.ContentType = "application/octet-stream"
	wc.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(wc, f); err != nil {
		wc.Close()
		return fmt.Errorf("write gs://%s/%s: %w", g.bucket, objectKey, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/%s: %w", g.bucket, objectKey, err)
	}
	return nil
}

// Close releases the underlying storage client.
func (g *GCSUploader) Close() error {
	return g.storageClient.Close()
}
