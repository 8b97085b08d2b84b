/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */

// Package gcsbackend implements inventory.AssetBackend against a Google
// Cloud Storage bucket, a third pluggable asset store next to
// gridbackend/s3backend and gridbackend/azblobbackend.
package gcsbackend

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
	"github.com/rezsim/rez/cmn/nlog"
)

// Backend is an inventory.AssetBackend backed by one GCS bucket, one
// object per asset keyed by asset id.
type Backend struct {
	client *storage.Client
	bucket string
	prefix string
}

// Config names the bucket and optional object-name prefix a GCS-backed
// grid stores assets under.
type Config struct {
	Bucket string
	Prefix string
}

// New opens a GCS client using the ambient application-default
// credentials, the same credential resolution GCS client libraries use
// by default.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcsbackend: creating client: %w", err)
	}
	return &Backend{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (b *Backend) objectName(id uuid.UUID) string {
	if b.prefix == "" {
		return id.String()
	}
	return b.prefix + "/" + id.String()
}

// Fetch implements inventory.AssetBackend.
func (b *Backend) Fetch(id uuid.UUID, done func(payload []byte, status apc.AssetStatus)) {
	go func() {
		ctx := context.Background()
		obj := b.client.Bucket(b.bucket).Object(b.objectName(id))
		r, err := obj.NewReader(ctx)
		if err != nil {
			nlog.Warningf("gcsbackend: fetch %s from gs://%s/%s: %v", id, b.bucket, b.objectName(id), err)
			done(nil, apc.AssetMissing)
			return
		}
		defer r.Close()
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, r); err != nil {
			nlog.Warningf("gcsbackend: reading body for %s: %v", id, err)
			done(nil, apc.AssetMissing)
			return
		}
		done(buf.Bytes(), apc.AssetReady)
	}()
}

// Put implements inventory.AssetBackend.
func (b *Backend) Put(payload []byte, done func(finalID uuid.UUID, err error)) {
	id := uuid.New()
	go func() {
		ctx := context.Background()
		w := b.client.Bucket(b.bucket).Object(b.objectName(id)).NewWriter(ctx)
		if _, err := w.Write(payload); err != nil {
			w.Close()
			done(uuid.Nil, fmt.Errorf("gcsbackend: put %s: %w", id, err))
			return
		}
		if err := w.Close(); err != nil {
			done(uuid.Nil, fmt.Errorf("gcsbackend: closing writer for %s: %w", id, err))
			return
		}
		done(id, nil)
	}()
}
