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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/tekton-cd/pipectl/pkg/orchestrator"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply deploys the pipeline definitions in dependency order using server-side apply.",
	Long: `The apply command ensures the namespace exists, then applies the cluster tasks, tasks,
storage class, persistent volume claim, pipeline, trigger binding, trigger template and
event listener definitions in this order. Missing definitions are skipped, a failed
definition stops the sequence.

After the definitions are applied, the EventListener service is discovered and the
command waits for its pods to become ready. Failures of the optional steps are
reported as warnings and don't change the exit code.`,
	Example: `  # Apply the definitions from ./deploy/tekton to the tekton-cd namespace
  pipectl apply -n tekton-cd

  # Apply, expose the EventListener with an OpenShift Route and trigger a pipeline run
  pipectl apply -n tekton-cd --expose-eventlistener --run-pipelinerun

  # Apply the newest 1.x definitions published to a container registry
  pipectl apply -n tekton-cd --artifact oci://ghcr.io/org/pipeline --semver 1.x
`,
	Args: cobra.NoArgs,
	RunE: runApplyCmd,
}

type applyFlags struct {
	path            string
	exposeListener  bool
	runPipelineRun  bool
	portForwardTest bool
	waitTimeout     time.Duration
	force           bool
	artifact        string
	semverExp       string
	ageIdentities   string
}

const defaultDefinitionsPath = "deploy/tekton"

var applyArgs = applyFlags{path: defaultDefinitionsPath}

func init() {
	applyCmd.Flags().StringVar(&applyArgs.path, "path", applyArgs.path,
		"Path to the directory that contains the pipeline definitions.")
	applyCmd.Flags().BoolVar(&applyArgs.exposeListener, "expose-eventlistener", false,
		"Expose the EventListener service with an OpenShift Route and print its URL.")
	applyCmd.Flags().BoolVar(&applyArgs.runPipelineRun, "run-pipelinerun", false,
		"Create a PipelineRun from the run-once definition after the pipeline is applied.")
	applyCmd.Flags().BoolVar(&applyArgs.portForwardTest, "port-forward-test", false,
		"Print the port-forward and curl commands for testing the EventListener.")
	applyCmd.Flags().DurationVar(&applyArgs.waitTimeout, "wait-timeout", 0,
		"The length of time to wait for the EventListener pods to become ready, defaults to the config readiness timeout.")
	applyCmd.Flags().BoolVar(&applyArgs.force, "force", false, "Recreate objects that contain immutable fields changes.")
	applyCmd.Flags().StringVar(&applyArgs.artifact, "artifact", "",
		"Pull the definitions from an OCI artifact e.g. 'oci://ghcr.io/org/pipeline:v1.0.0'.")
	applyCmd.Flags().StringVar(&applyArgs.semverExp, "semver", "",
		"Pull the newest artifact tag matching the semantic version constraint e.g. '1.x'.")
	applyCmd.Flags().StringVar(&applyArgs.ageIdentities, "age-identities", "",
		"Path to a file containing one or more age identities (private keys generated by age-keygen).")

	rootCmd.AddCommand(applyCmd)
}

func runApplyCmd(cmd *cobra.Command, args []string) error {
	if applyArgs.semverExp != "" && applyArgs.artifact == "" {
		return fmt.Errorf("--semver requires --artifact")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	dir := applyArgs.path
	if applyArgs.artifact != "" {
		tmpDir, err := os.MkdirTemp("", PROJECT)
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmpDir)

		pullCtx, pullCancel := context.WithTimeout(ctx, rootArgs.timeout)
		defer pullCancel()
		src := artifactSource{
			url:           applyArgs.artifact,
			semverExp:     applyArgs.semverExp,
			ageIdentities: applyArgs.ageIdentities,
		}
		if _, err := src.fetch(pullCtx, tmpDir); err != nil {
			return err
		}
		dir = tmpDir
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("definitions directory %s not found", dir)
	}

	kubeClient, err := newClusterClient(kubeconfigArgs)
	if err != nil {
		return err
	}

	waitTimeout := cfg.Readiness.Timeout.Duration
	if applyArgs.waitTimeout > 0 {
		waitTimeout = applyArgs.waitTimeout
	}

	opts := orchestrator.Options{
		Namespace:       *kubeconfigArgs.Namespace,
		Dir:             dir,
		Definitions:     cfg.Definitions,
		RunOnce:         *cfg.RunOnce,
		ExposeEndpoint:  applyArgs.exposeListener,
		RunPipelineRun:  applyArgs.runPipelineRun,
		PortForwardTest: applyArgs.portForwardTest,
		Force:           applyArgs.force,
		Discovery: orchestrator.Discovery{
			Prefixes:      cfg.Discovery.Prefixes,
			Substrings:    cfg.Discovery.Substrings,
			LabelSelector: cfg.Discovery.LabelSelector,
		},
		ReadinessInterval: cfg.Readiness.Interval.Duration,
		ReadinessTimeout:  waitTimeout,
		Webhook: orchestrator.WebhookOptions{
			RepositoryURL: cfg.Webhook.RepositoryURL,
			Ref:           cfg.Webhook.Ref,
			Port:          cfg.Webhook.Port,
		},
	}

	report, err := orchestrator.New(kubeClient, logger, opts).Run(ctx)
	if err != nil {
		return err
	}

	if report.Endpoint != nil {
		rootCmd.Println(fmt.Sprintf("http://%s", report.Endpoint.Host))
	}
	if report.Instructions != "" {
		rootCmd.Print(report.Instructions)
	}

	printSummary(report.Summary, report.SummarySkipped)

	if n := len(report.Warnings); n > 0 {
		logger.Warningf("apply finished with %d warnings", n)
	} else {
		logger.Successf("apply finished")
	}
	return nil
}
