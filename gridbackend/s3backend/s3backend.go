/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */

// Package s3backend implements inventory.AssetBackend against an S3
// bucket, one of several pluggable asset stores a grid operator can
// choose for where rezzed objects' textures, sounds, and notecard
// payloads actually live.
package s3backend

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
	"github.com/rezsim/rez/cmn/nlog"
)

// Backend is an inventory.AssetBackend backed by a single S3 bucket,
// one object per asset keyed by asset id.
type Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// Config names the bucket/prefix an S3-backed grid stores assets under.
// Endpoint is optional and lets this point at an S3-compatible store
// (e.g. a on-prem object gateway) instead of AWS itself.
type Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// New loads the default AWS credential chain (environment, shared
// config, or instance role) and binds it to cfg.Bucket.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	loadOpts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3backend: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Backend{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

func (b *Backend) key(id uuid.UUID) string {
	if b.prefix == "" {
		return id.String()
	}
	return b.prefix + "/" + id.String()
}

// Fetch implements inventory.AssetBackend.
func (b *Backend) Fetch(id uuid.UUID, done func(payload []byte, status apc.AssetStatus)) {
	go func() {
		ctx := context.Background()
		out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.key(id)),
		})
		if err != nil {
			nlog.Warningf("s3backend: fetch %s from s3://%s/%s: %v", id, b.bucket, b.key(id), err)
			done(nil, apc.AssetMissing)
			return
		}
		defer out.Body.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(out.Body); err != nil {
			nlog.Warningf("s3backend: reading body for %s: %v", id, err)
			done(nil, apc.AssetMissing)
			return
		}
		done(buf.Bytes(), apc.AssetReady)
	}()
}

// Put implements inventory.AssetBackend. The asset's id is derived from
// the grid, not from the payload, the way the original asset server
// assigns a fresh UUID on every store rather than content-addressing.
func (b *Backend) Put(payload []byte, done func(finalID uuid.UUID, err error)) {
	id := uuid.New()
	go func() {
		ctx := context.Background()
		_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.key(id)),
			Body:   bytes.NewReader(payload),
		})
		if err != nil {
			done(uuid.Nil, fmt.Errorf("s3backend: put %s: %w", id, err))
			return
		}
		done(id, nil)
	}()
}
