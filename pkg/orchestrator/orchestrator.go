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

// Package orchestrator applies the pipeline resource definitions to a namespace
// in dependency order, waits for the webhook listener and runs the optional
// expose, trigger and instructions steps.
//
// Errors of the mandatory steps (control plane preflight, ordered apply) are
// returned to the caller, errors of the optional steps are logged as warnings
// and collected in the Report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/tekton-cd/pipectl/pkg/cluster"
	"github.com/tekton-cd/pipectl/pkg/definition"
)

var (
	// ErrTargetNotFound is returned when no service matches the discovery rules.
	ErrTargetNotFound = errors.New("no EventListener service found")

	// ErrNotReady is returned when the listener pods are not ready within the timeout.
	ErrNotReady = errors.New("EventListener pods not ready")
)

// Logger prints the progress of each step.
type Logger interface {
	Actionf(format string, a ...interface{})
	Waitingf(format string, a ...interface{})
	Successf(format string, a ...interface{})
	Warningf(format string, a ...interface{})
	Failuref(format string, a ...interface{})
}

// Discovery holds the naming conventions of the EventListener service.
type Discovery struct {
	Prefixes      []string
	Substrings    []string
	LabelSelector string
}

// WebhookOptions holds the values used to render the manual test instructions.
type WebhookOptions struct {
	RepositoryURL string
	Ref           string
	Port          int
}

// Options configures a run.
type Options struct {
	Namespace   string
	Dir         string
	Definitions []definition.Definition
	RunOnce     definition.Definition

	ExposeEndpoint  bool
	RunPipelineRun  bool
	PortForwardTest bool
	Force           bool

	Discovery         Discovery
	ReadinessInterval time.Duration
	ReadinessTimeout  time.Duration
	Webhook           WebhookOptions

	// SummaryKinds defaults to DefaultSummaryKinds.
	SummaryKinds []schema.GroupVersionKind
}

// Target is the discovered EventListener service.
type Target struct {
	Service  string
	Selector map[string]string
	// MatchedBy describes the discovery rule that matched.
	MatchedBy string
}

// Report records the outcome of each step of a run.
type Report struct {
	Namespace        string
	NamespaceCreated bool

	Applied   []definition.Definition
	Skipped   []definition.Definition
	ChangeSet *cluster.ChangeSet

	RunOnce      *cluster.ChangeSet
	Target       *Target
	Ready        bool
	Endpoint     *cluster.Endpoint
	Instructions string

	Summary        []cluster.Resource
	SummarySkipped []string

	Warnings []string
}

func (r *Report) warn(err error) {
	r.Warnings = append(r.Warnings, err.Error())
}

// ApplyError reports the definition that could not be applied.
type ApplyError struct {
	// Index is the zero based position of the definition in the apply order.
	Index      int
	Definition definition.Definition
	Err        error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("definition #%d %s apply failed: %v", e.Index+1, e.Definition, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// Orchestrator runs the apply sequence against a cluster.Client.
type Orchestrator struct {
	client cluster.Client
	logger Logger
	opts   Options
}

// New returns an Orchestrator, zero durations are replaced with the defaults.
func New(client cluster.Client, logger Logger, opts Options) *Orchestrator {
	if opts.ReadinessInterval <= 0 {
		opts.ReadinessInterval = 3 * time.Second
	}
	if opts.ReadinessTimeout <= 0 {
		opts.ReadinessTimeout = 120 * time.Second
	}
	if opts.Webhook.Port == 0 {
		opts.Webhook.Port = 8080
	}
	if len(opts.SummaryKinds) == 0 {
		opts.SummaryKinds = DefaultSummaryKinds()
	}
	return &Orchestrator{
		client: client,
		logger: logger,
		opts:   opts,
	}
}

// Run executes the steps in order. The returned error is non-nil only when the
// control plane is not reachable, the namespace can't be ensured or a
// definition fails to apply; in that case the optional steps are not run.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{Namespace: o.opts.Namespace}

	env, created, err := o.EnsureEnvironment(ctx, o.opts.Namespace)
	if err != nil {
		return report, err
	}
	report.NamespaceCreated = created

	if err := o.ApplyOrdered(ctx, env, o.opts.Definitions, report); err != nil {
		return report, err
	}

	if o.opts.RunPipelineRun {
		cs, err := o.TriggerRunOnce(ctx, env)
		if err != nil {
			o.logger.Warningf("%s", err)
			report.warn(err)
		}
		report.RunOnce = cs
	}

	target, err := o.DiscoverReadinessTarget(ctx, env)
	if err != nil {
		o.logger.Warningf("%s, skipping readiness check, expose and test instructions", err)
		report.warn(err)
	} else {
		report.Target = target

		if err := o.WaitUntilReady(ctx, env, target.Selector, o.opts.ReadinessTimeout); err != nil {
			o.logger.Warningf("%s", err)
			report.warn(err)
		} else {
			report.Ready = true
		}

		if o.opts.ExposeEndpoint {
			endpoint, err := o.ExposeEndpoint(ctx, env, target.Service)
			if err != nil {
				o.logger.Warningf("%s", err)
				report.warn(err)
			}
			report.Endpoint = endpoint
		}

		if o.opts.PortForwardTest {
			instructions, err := o.Instructions(env, target)
			if err != nil {
				o.logger.Warningf("%s", err)
				report.warn(err)
			}
			report.Instructions = instructions
		}
	}

	report.Summary, report.SummarySkipped = o.Summarize(ctx, env)

	return report, nil
}
