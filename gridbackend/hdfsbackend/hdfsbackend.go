/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */

// Package hdfsbackend implements inventory.AssetBackend against an HDFS
// cluster, the fourth pluggable asset store, aimed at on-prem grids that
// already run Hadoop for other storage needs rather than a cloud object
// store.
package hdfsbackend

import (
	"bytes"
	"fmt"
	"io"
	"path"

	"github.com/colinmarc/hdfs/v2"
	"github.com/google/uuid"

	"github.com/rezsim/rez/apc"
	"github.com/rezsim/rez/cmn/nlog"
)

// Backend is an inventory.AssetBackend backed by one HDFS directory,
// one file per asset named by asset id.
type Backend struct {
	client *hdfs.Client
	dir    string
}

// New dials namenode and stores assets as files under dir (created if
// absent).
func New(namenode, dir string) (*Backend, error) {
	client, err := hdfs.New(namenode)
	if err != nil {
		return nil, fmt.Errorf("hdfsbackend: dialing %s: %w", namenode, err)
	}
	if err := client.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("hdfsbackend: creating %s: %w", dir, err)
	}
	return &Backend{client: client, dir: dir}, nil
}

func (b *Backend) path(id uuid.UUID) string {
	return path.Join(b.dir, id.String())
}

// Fetch implements inventory.AssetBackend.
func (b *Backend) Fetch(id uuid.UUID, done func(payload []byte, status apc.AssetStatus)) {
	go func() {
		r, err := b.client.Open(b.path(id))
		if err != nil {
			nlog.Warningf("hdfsbackend: fetch %s from %s: %v", id, b.path(id), err)
			done(nil, apc.AssetMissing)
			return
		}
		defer r.Close()
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, r); err != nil {
			nlog.Warningf("hdfsbackend: reading body for %s: %v", id, err)
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
		w, err := b.client.Create(b.path(id))
		if err != nil {
			done(uuid.Nil, fmt.Errorf("hdfsbackend: creating %s: %w", b.path(id), err))
			return
		}
		if _, err := w.Write(payload); err != nil {
			w.Close()
			done(uuid.Nil, fmt.Errorf("hdfsbackend: writing %s: %w", b.path(id), err))
			return
		}
		if err := w.Close(); err != nil {
			done(uuid.Nil, fmt.Errorf("hdfsbackend: closing %s: %w", b.path(id), err))
			return
		}
		done(id, nil)
	}()
}
