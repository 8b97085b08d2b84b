/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */

// Package k8sdiscovery is a region-map backend: instead of a static grid
// server's flat region table, it discovers sibling region endpoints from
// a Kubernetes Service/Endpoints list, the deployment shape for a grid
// that runs each region as its own pod behind a headless Service.
package k8sdiscovery

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/rezsim/rez/cmn/nlog"
	"github.com/rezsim/rez/grid/meta"
)

// Directory resolves a region Handle to a RegionInfo from one Kubernetes
// Service's Endpoints rather than a grid server. It holds no watch of its
// own: the handle->RegionInfo map changes only when Refresh re-lists.
type Directory struct {
	clientset *kubernetes.Clientset
	namespace string
	service   string

	mu      sync.RWMutex
	regions map[meta.Handle]meta.RegionInfo
}

// New builds a Directory from in-cluster config, reading namespace's
// service's Endpoints for region pods; its table stays empty until the
// first Refresh.
func New(namespace, service string) (*Directory, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("k8sdiscovery: loading in-cluster config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("k8sdiscovery: building clientset: %w", err)
	}
	return &Directory{
		clientset: clientset,
		namespace: namespace,
		service:   service,
		regions:   make(map[meta.Handle]meta.RegionInfo),
	}, nil
}

// Refresh re-lists the Endpoints object for the configured Service and
// rebuilds the handle table. Call this on a timer or in response to a
// watch event; a single Directory is safe for concurrent Refresh and
// Lookup calls.
func (d *Directory) Refresh(ctx context.Context) error {
	eps, err := d.clientset.CoreV1().Endpoints(d.namespace).Get(ctx, d.service, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("k8sdiscovery: getting endpoints %s/%s: %w", d.namespace, d.service, err)
	}

	regions := make(map[meta.Handle]meta.RegionInfo)
	for _, subset := range eps.Subsets {
		port := findPort(subset.Ports, "sim")
		for _, addr := range subset.Addresses {
			info, ok := regionFromAddress(addr, port)
			if !ok {
				continue
			}
			regions[info.Handle] = info
		}
	}

	d.mu.Lock()
	d.regions = regions
	d.mu.Unlock()
	nlog.Infof("k8sdiscovery: refreshed %d region(s) from %s/%s", len(regions), d.namespace, d.service)
	return nil
}

// Lookup implements the region-resolution half of fed.Glue's
// ResolveDestination, keyed by Handle instead of a landmark/region-name
// lookup against a static grid server.
func (d *Directory) Lookup(handle meta.Handle) (meta.RegionInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	info, ok := d.regions[handle]
	return info, ok
}

func findPort(ports []corev1.EndpointPort, name string) uint16 {
	for _, p := range ports {
		if p.Name == name {
			return uint16(p.Port)
		}
	}
	if len(ports) > 0 {
		return uint16(ports[0].Port)
	}
	return 0
}

// regionFromAddress derives a RegionInfo from one Endpoints address.
// Hostname, set via subdomain-per-pod StatefulSet DNS as "<x>-<y>", is
// the encoded region handle, which keeps Directory a read-only
// Endpoints watcher with no per-address Pod GET for annotations.
func regionFromAddress(addr corev1.EndpointAddress, port uint16) (meta.RegionInfo, bool) {
	x, y, ok := parseHandleHostname(addr.Hostname)
	if !ok {
		return meta.RegionInfo{}, false
	}
	return meta.RegionInfo{
		Handle:   meta.NewHandle(x, y),
		Name:     addr.Hostname,
		IP:       addr.IP,
		Port:     port,
		HTTPPort: port,
	}, true
}

func parseHandleHostname(hostname string) (x, y uint32, ok bool) {
	for i := 0; i < len(hostname); i++ {
		if hostname[i] != '-' {
			continue
		}
		xs, ys := hostname[:i], hostname[i+1:]
		xi, err1 := strconv.ParseUint(xs, 10, 32)
		yi, err2 := strconv.ParseUint(ys, 10, 32)
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		return uint32(xi), uint32(yi), true
	}
	return 0, 0, false
}
