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
	"fmt"

	"github.com/tekton-cd/pipectl/pkg/cluster"
	"github.com/tekton-cd/pipectl/pkg/definition"
)

// EnsureEnvironment checks that the control plane is reachable, then
// creates the namespace if it doesn't exist.
func (o *Orchestrator) EnsureEnvironment(ctx context.Context, namespace string) (cluster.Environment, bool, error) {
	if err := o.client.Preflight(ctx); err != nil {
		return cluster.Environment{}, false, fmt.Errorf("preflight check failed: %w", err)
	}

	o.logger.Actionf("ensuring namespace %s", namespace)
	env, created, err := o.client.EnsureEnvironment(ctx, namespace)
	if err != nil {
		return env, false, err
	}

	if created {
		o.logger.Successf("namespace %s created", namespace)
	} else {
		o.logger.Successf("namespace %s exists", namespace)
	}
	return env, created, nil
}

// ApplyOrdered applies the definitions one after the other.
// Definitions whose path doesn't exist are skipped, the first apply error
// stops the sequence and is returned as an ApplyError.
func (o *Orchestrator) ApplyOrdered(ctx context.Context, env cluster.Environment, definitions []definition.Definition, report *Report) error {
	if report.ChangeSet == nil {
		report.ChangeSet = cluster.NewChangeSet()
	}

	for i, def := range definitions {
		p, found, err := def.Resolve(o.opts.Dir)
		if err != nil {
			return &ApplyError{Index: i, Definition: def, Err: err}
		}
		if !found {
			o.logger.Warningf("skipping %s, %s not found", def.Name, p)
			report.Skipped = append(report.Skipped, def)
			continue
		}

		o.logger.Actionf("applying %s", def)
		cs, err := o.applyDefinition(ctx, env, p)
		if err != nil {
			o.logger.Failuref("%s apply failed", def.Name)
			return &ApplyError{Index: i, Definition: def, Err: err}
		}

		report.Applied = append(report.Applied, def)
		report.ChangeSet.AddAll(cs.Entries)
	}

	o.logger.Successf("%d definitions applied, %d skipped", len(report.Applied), len(report.Skipped))
	return nil
}

// TriggerRunOnce applies the one-shot run definition.
func (o *Orchestrator) TriggerRunOnce(ctx context.Context, env cluster.Environment) (*cluster.ChangeSet, error) {
	def := o.opts.RunOnce
	p, found, err := def.Resolve(o.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", def, err)
	}
	if !found {
		return nil, fmt.Errorf("%s not found, no run triggered", p)
	}

	o.logger.Actionf("triggering %s", def)
	cs, err := o.applyDefinition(ctx, env, p)
	if err != nil {
		return nil, fmt.Errorf("%s apply failed: %w", def, err)
	}
	return cs, nil
}

func (o *Orchestrator) applyDefinition(ctx context.Context, env cluster.Environment, p string) (*cluster.ChangeSet, error) {
	objects, err := definition.Load(p)
	if err != nil {
		return nil, err
	}

	cs, err := o.client.ApplyResource(ctx, env, objects, cluster.ApplyOptions{Force: o.opts.Force})
	if err != nil {
		return nil, err
	}

	for _, change := range cs.Entries {
		o.logger.Successf("%s", change)
	}
	return cs, nil
}
