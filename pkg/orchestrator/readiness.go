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
	"fmt"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/tekton-cd/pipectl/pkg/cluster"
)

var serviceGVK = schema.GroupVersionKind{Version: "v1", Kind: "Service"}

// DiscoverReadinessTarget looks for the EventListener service by name prefix,
// then by name substring and finally by label selector.
func (o *Orchestrator) DiscoverReadinessTarget(ctx context.Context, env cluster.Environment) (*Target, error) {
	o.logger.Actionf("looking up the EventListener service")

	services, err := o.client.ListResources(ctx, env, serviceGVK, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTargetNotFound, err)
	}

	for _, prefix := range o.opts.Discovery.Prefixes {
		for _, svc := range services {
			if strings.HasPrefix(svc.Name, prefix) {
				return o.found(svc, fmt.Sprintf("prefix '%s'", prefix)), nil
			}
		}
	}

	for _, substr := range o.opts.Discovery.Substrings {
		for _, svc := range services {
			if strings.Contains(strings.ToLower(svc.Name), strings.ToLower(substr)) {
				return o.found(svc, fmt.Sprintf("substring '%s'", substr)), nil
			}
		}
	}

	if o.opts.Discovery.LabelSelector != "" {
		selector, err := labels.Parse(o.opts.Discovery.LabelSelector)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid label selector: %v", ErrTargetNotFound, err)
		}
		matched, err := o.client.ListResources(ctx, env, serviceGVK, selector)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTargetNotFound, err)
		}
		if len(matched) > 0 {
			return o.found(matched[0], fmt.Sprintf("selector '%s'", selector)), nil
		}
	}

	return nil, fmt.Errorf("%w in namespace %s", ErrTargetNotFound, env.Namespace)
}

func (o *Orchestrator) found(svc cluster.Resource, rule string) *Target {
	o.logger.Successf("found Service/%s/%s by %s", svc.Namespace, svc.Name, rule)
	return &Target{
		Service:   svc.Name,
		Selector:  svc.Selector,
		MatchedBy: rule,
	}
}

// WaitUntilReady polls the pods matching the selector every readiness interval
// until all of them are running and ready, or the timeout elapses.
func (o *Orchestrator) WaitUntilReady(ctx context.Context, env cluster.Environment, selector map[string]string, timeout time.Duration) error {
	sel := labels.SelectorFromSet(selector).String()
	o.logger.Waitingf("waiting for pods '%s' to become ready", sel)

	var last cluster.WorkloadStatus
	err := wait.PollImmediate(o.opts.ReadinessInterval, timeout, func() (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		ws, err := o.client.GetResourceStatus(ctx, env, selector)
		if err != nil {
			return false, err
		}
		last = ws
		return ws.IsReady(), nil
	})

	switch {
	case errors.Is(err, wait.ErrWaitTimeout):
		return fmt.Errorf("%w: %d/%d pods '%s' ready after %s", ErrNotReady, last.Ready, last.Total, sel, timeout)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	o.logger.Successf("%d/%d pods '%s' ready", last.Ready, last.Total, sel)
	return nil
}
