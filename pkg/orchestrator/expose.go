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

	"github.com/tekton-cd/pipectl/pkg/cluster"
	"github.com/tekton-cd/pipectl/pkg/webhook"
)

const repositoryPlaceholder = "<repository-url>"

// ExposeEndpoint makes the service reachable from outside the cluster and
// returns its external address.
func (o *Orchestrator) ExposeEndpoint(ctx context.Context, env cluster.Environment, service string) (*cluster.Endpoint, error) {
	o.logger.Actionf("exposing Service/%s/%s", env.Namespace, service)

	endpoint, err := o.client.ExposeService(ctx, env, service)
	if err != nil {
		if errors.Is(err, cluster.ErrUnsupported) {
			return nil, fmt.Errorf("exposing %s failed, Routes are not served by this cluster: %w", service, err)
		}
		return nil, fmt.Errorf("exposing %s failed: %w", service, err)
	}

	if endpoint.Created {
		o.logger.Successf("Route/%s/%s created", env.Namespace, endpoint.Route)
	}
	o.logger.Successf("EventListener URL: http://%s", endpoint.Host)
	return &endpoint, nil
}

// Instructions renders the commands for testing the EventListener from a
// workstation. The commands are returned, never executed.
func (o *Orchestrator) Instructions(env cluster.Environment, target *Target) (string, error) {
	if target == nil || target.Service == "" {
		return "", fmt.Errorf("test instructions unavailable: %w", ErrTargetNotFound)
	}

	o.logger.Actionf("rendering test instructions for Service/%s/%s", env.Namespace, target.Service)

	repo := o.opts.Webhook.RepositoryURL
	if repo == "" {
		repo = repositoryPlaceholder
	}
	port := o.opts.Webhook.Port

	curl, err := webhook.CurlCommand(fmt.Sprintf("http://localhost:%d", port), webhook.NewPushPayload(repo, o.opts.Webhook.Ref, ""), "")
	if err != nil {
		return "", fmt.Errorf("rendering webhook payload failed: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# forward the EventListener port to localhost\n")
	fmt.Fprintf(&b, "kubectl -n %s port-forward svc/%s %d:%d\n", env.Namespace, target.Service, port, port)
	fmt.Fprintf(&b, "# in another terminal, send a push event\n")
	fmt.Fprintf(&b, "%s\n", curl)

	o.logger.Successf("test instructions for Service/%s/%s ready", env.Namespace, target.Service)
	return b.String(), nil
}
