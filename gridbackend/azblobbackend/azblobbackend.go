/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */

// Package azblobbackend implements inventory.AssetBackend against an
// Azure Blob Storage container, a second pluggable asset store next to
// gridbackend/s3backend.
package azblobbackend

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
	"github.com/rezsim/rez/cmn/nlog"
)

// Backend is an inventory.AssetBackend backed by one Azure Blob Storage
// container, one blob per asset keyed by asset id.
type Backend struct {
	client    *azblob.Client
	container string
	prefix    string
}

// Config names the storage account, container, and optional blob
// prefix an Azure-backed grid stores assets under.
type Config struct {
	ServiceURL string // e.g. https://<account>.blob.core.windows.net
	Container  string
	Prefix     string
}

// New builds a Backend from a shared-key client for cfg.ServiceURL,
// authenticated with cred; no other credential source is consulted.
func New(ctx context.Context, cfg Config, cred azblob.SharedKeyCredential) (*Backend, error) {
	client, err := azblob.NewClientWithSharedKeyCredential(cfg.ServiceURL, &cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azblobbackend: creating client: %w", err)
	}
	return &Backend{client: client, container: cfg.Container, prefix: cfg.Prefix}, nil
}

func (b *Backend) blobName(id uuid.UUID) string {
	if b.prefix == "" {
		return id.String()
	}
	return b.prefix + "/" + id.String()
}

// Fetch implements inventory.AssetBackend.
func (b *Backend) Fetch(id uuid.UUID, done func(payload []byte, status apc.AssetStatus)) {
	go func() {
		ctx := context.Background()
		resp, err := b.client.DownloadStream(ctx, b.container, b.blobName(id), nil)
		if err != nil {
			nlog.Warningf("azblobbackend: fetch %s from %s/%s: %v", id, b.container, b.blobName(id), err)
			done(nil, apc.AssetMissing)
			return
		}
		var buf bytes.Buffer
		body := resp.Body
		defer body.Close()
		if _, err := buf.ReadFrom(body); err != nil {
			nlog.Warningf("azblobbackend: reading body for %s: %v", id, err)
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
		_, err := b.client.UploadBuffer(ctx, b.container, b.blobName(id), payload, nil)
		if err != nil {
			done(uuid.Nil, fmt.Errorf("azblobbackend: put %s: %w", id, err))
			return
		}
		done(id, nil)
	}()
}
