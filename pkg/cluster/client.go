/*
Copyright 2021 Stefan Prodan

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cluster

import (
	"context"
	"errors"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var (
	// ErrUnsupported is returned when the cluster doesn't serve the API needed by an operation.
	ErrUnsupported = errors.New("operation not supported by the cluster")

	// ErrKindNotServed is returned when listing a kind that has no API registered.
	ErrKindNotServed = errors.New("kind not served by the cluster")
)

// Environment is a handle to the namespace all operations are performed in.
type Environment struct {
	Namespace string
}

// ApplyOptions holds the options for ApplyResource.
type ApplyOptions struct {
	// Force recreates the objects that contain immutable field changes.
	Force bool
}

// Resource is the observed state of an object.
type Resource struct {
	Kind      string
	Namespace string
	Name      string
	Labels    map[string]string

	// Selector holds spec.selector for Services, nil for other kinds.
	Selector map[string]string

	// Status is the kstatus of the object e.g. Current, InProgress, Failed.
	Status  string
	Message string

	Created time.Time
}

// WorkloadStatus counts the pods matching a selector.
type WorkloadStatus struct {
	Selector string
	Total    int
	Running  int
	Ready    int
}

// IsReady returns true when there is at least one pod and all pods are running and ready.
func (s WorkloadStatus) IsReady() bool {
	return s.Total > 0 && s.Ready == s.Total
}

// Endpoint is an externally reachable address of a Service.
type Endpoint struct {
	Service string
	Route   string
	Host    string
	// Created is false when the route already existed.
	Created bool
}

// Client is the set of control plane capabilities the orchestrator relies on.
type Client interface {
	// Preflight returns an error if the control plane can't be reached.
	Preflight(ctx context.Context) error

	// EnsureEnvironment creates the namespace if it doesn't exist.
	// It reports whether the namespace was created.
	EnsureEnvironment(ctx context.Context, namespace string) (Environment, bool, error)

	// ApplyResource reconciles the given objects in the environment.
	ApplyResource(ctx context.Context, env Environment, objects []*unstructured.Unstructured, opts ApplyOptions) (*ChangeSet, error)

	// GetResourceStatus reports the state of the pods matching the selector.
	GetResourceStatus(ctx context.Context, env Environment, selector map[string]string) (WorkloadStatus, error)

	// ExposeService makes the service reachable from outside the cluster.
	ExposeService(ctx context.Context, env Environment, service string) (Endpoint, error)

	// ListResources returns the objects of the given kind matching the selector.
	ListResources(ctx context.Context, env Environment, gvk schema.GroupVersionKind, selector labels.Selector) ([]Resource, error)
}
