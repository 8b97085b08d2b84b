/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package k8sdiscovery

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/rest"
	metricsv1beta1 "k8s.io/metrics/pkg/client/clientset/versioned"
)

// RegionLoad is a snapshot of one region pod's resource usage, used to
// steer new-avatar placement away from an already-loaded region when
// more than one candidate region shares a destination handle (e.g. a
// var-region's sibling cells).
type RegionLoad struct {
	PodName   string
	CPUMillis int64
	MemBytes  int64
}

// LoadSampler reads pod resource usage from the metrics.k8s.io API,
// kept separate from Directory's Endpoints listing since it talks to a
// different API group (metrics-server, not core/v1).
type LoadSampler struct {
	client    *metricsv1beta1.Clientset
	namespace string
}

// NewLoadSampler builds a LoadSampler against the same in-cluster
// config a Directory uses.
func NewLoadSampler(namespace string) (*LoadSampler, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("k8sdiscovery: loading in-cluster config: %w", err)
	}
	client, err := metricsv1beta1.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("k8sdiscovery: building metrics clientset: %w", err)
	}
	return &LoadSampler{client: client, namespace: namespace}, nil
}

// Sample lists current resource usage for every region pod in the
// namespace.
func (s *LoadSampler) Sample(ctx context.Context) ([]RegionLoad, error) {
	list, err := s.client.MetricsV1beta1().PodMetricses(s.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("k8sdiscovery: listing pod metrics: %w", err)
	}

	loads := make([]RegionLoad, 0, len(list.Items))
	for _, pm := range list.Items {
		var cpu, mem int64
		for _, c := range pm.Containers {
			cpu += c.Usage.Cpu().MilliValue()
			mem += c.Usage.Memory().Value()
		}
		loads = append(loads, RegionLoad{PodName: pm.Name, CPUMillis: cpu, MemBytes: mem})
	}
	return loads, nil
}
