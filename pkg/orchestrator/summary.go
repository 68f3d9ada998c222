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

package orchestrator

import (
	"context"
	"errors"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/tekton-cd/pipectl/pkg/cluster"
)

var (
	tektonGV   = schema.GroupVersion{Group: "tekton.dev", Version: "v1beta1"}
	triggersGV = schema.GroupVersion{Group: "triggers.tekton.dev", Version: "v1beta1"}
)

// DefaultSummaryKinds returns the kinds listed by Summarize.
func DefaultSummaryKinds() []schema.GroupVersionKind {
	return []schema.GroupVersionKind{
		tektonGV.WithKind("ClusterTask"),
		tektonGV.WithKind("Task"),
		tektonGV.WithKind("Pipeline"),
		tektonGV.WithKind("PipelineRun"),
		triggersGV.WithKind("TriggerBinding"),
		triggersGV.WithKind("TriggerTemplate"),
		triggersGV.WithKind("EventListener"),
		{Version: "v1", Kind: "PersistentVolumeClaim"},
		{Version: "v1", Kind: "Service"},
		cluster.RouteGVK,
	}
}

// Summarize lists the objects of the managed kinds found in the environment.
// Kinds that can't be listed are returned as skipped.
func (o *Orchestrator) Summarize(ctx context.Context, env cluster.Environment) ([]cluster.Resource, []string) {
	o.logger.Actionf("listing pipeline objects in %s", env.Namespace)

	var resources []cluster.Resource
	var skipped []string

	for _, gvk := range o.opts.SummaryKinds {
		list, err := o.client.ListResources(ctx, env, gvk, nil)
		if err != nil {
			if !errors.Is(err, cluster.ErrKindNotServed) {
				o.logger.Warningf("listing %s failed: %s", gvk.Kind, err)
			}
			skipped = append(skipped, gvk.Kind)
			continue
		}
		resources = append(resources, list...)
	}

	o.logger.Successf("%d objects found, %d kinds skipped", len(resources), len(skipped))
	return resources, skipped
}
