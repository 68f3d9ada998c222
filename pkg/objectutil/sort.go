/*
Copyright 2021 Stefan Prodan.
Copyright 2020 The Kubernetes Authors.

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

package objectutil

import (
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// SortableUnstructureds orders objects so that producers come before their consumers.
// The sort is stable for objects of the same kind, the file order is kept.
type SortableUnstructureds []*unstructured.Unstructured

var _ sort.Interface = SortableUnstructureds{}

func (a SortableUnstructureds) Len() int      { return len(a) }
func (a SortableUnstructureds) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a SortableUnstructureds) Less(i, j int) bool {
	return IsLessThan(a[i].GroupVersionKind().GroupKind(), a[j].GroupVersionKind().GroupKind())
}

// Sort orders the objects in place using SortableUnstructureds.
func Sort(objects []*unstructured.Unstructured) {
	sort.Stable(SortableUnstructureds(objects))
}

var kind2index = computeKind2index()

func computeKind2index() map[string]int {
	// Storage and access objects come before the workloads that mount them,
	// Tekton tasks before the pipelines referencing them and
	// the trigger templates and bindings before the listeners using them.
	orderFirst := []string{
		"CustomResourceDefinition",
		"Namespace",
		"ResourceQuota",
		"StorageClass",
		"PersistentVolume",
		"PersistentVolumeClaim",
		"ServiceAccount",
		"Role",
		"ClusterRole",
		"RoleBinding",
		"ClusterRoleBinding",
		"ConfigMap",
		"Secret",
		"Service",
		"Deployment",
		"ClusterTask",
		"Task",
		"Pipeline",
		"TriggerBinding",
		"ClusterTriggerBinding",
		"TriggerTemplate",
		"Trigger",
		"EventListener",
		"Route",
	}
	orderLast := []string{
		"TaskRun",
		"PipelineRun",
	}
	kind2indexResult := make(map[string]int, len(orderFirst)+len(orderLast))
	for i, n := range orderFirst {
		kind2indexResult[n] = -len(orderFirst) + i
	}
	for i, n := range orderLast {
		kind2indexResult[n] = 1 + i
	}
	return kind2indexResult
}

func getIndexByKind(kind string) int {
	return kind2index[kind]
}

// IsLessThan compares two kinds by their apply rank.
// Kinds with the same rank are not reordered.
func IsLessThan(i, j schema.GroupKind) bool {
	return getIndexByKind(i.Kind) < getIndexByKind(j.Kind)
}
