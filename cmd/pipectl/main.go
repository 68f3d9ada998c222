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
	"fmt"
	"os"
	"time"

	"github.com/fluxcd/pkg/ssa"
	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/tekton-cd/pipectl/pkg/config"
)

var VERSION = "0.1.0-dev.0"

const PROJECT = "pipectl"

// defaultNamespace is used when neither --namespace nor $NAMESPACE is set.
const defaultNamespace = "tekton-cd"

var rootCmd = &cobra.Command{
	Use:           PROJECT,
	Version:       VERSION,
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "A command line utility to bootstrap a Tekton continuous delivery pipeline.",
	Long: `Pipectl applies the Tekton tasks, pipeline and triggers of a continuous delivery pipeline
to a Kubernetes or OpenShift cluster, waits for the EventListener to become ready
and optionally exposes it, triggers a run and prints the webhook test instructions.

Apply the pipeline definitions:

- pipectl apply -n <namespace> [--path <dir>] [--expose-eventlistener] [--run-pipelinerun] [--port-forward-test]
- pipectl apply -n <namespace> --artifact oci://<image-url>:<tag> [--semver <constraint>]

Inspect and distribute the definitions:

- pipectl build [--path <dir>]
- pipectl status -n <namespace>
- pipectl push oci://<image-url>:<tag> [--path <dir>]
- pipectl pull oci://<image-url>:<tag> --output <dir>

Send a push event to an EventListener:

- pipectl trigger --url <listener url> --git-url <repository url>
`,
}

type rootFlags struct {
	timeout time.Duration
}

var (
	rootArgs = rootFlags{}
	logger   = stderrLogger{stderr: os.Stderr}
	cfg      = config.NewConfig()
	owner    = ssa.Owner{
		Field: cfg.FieldManager.Name,
		Group: cfg.FieldManager.Group,
	}
)

var kubeconfigArgs = genericclioptions.NewConfigFlags(false)

func init() {
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", time.Minute,
		"The length of time to wait before giving up on a single cluster or registry operation.")

	kubeconfigArgs.Timeout = nil
	kubeconfigArgs.Namespace = nil
	kubeconfigArgs.AddFlags(rootCmd.PersistentFlags())

	namespace := envNamespace()
	kubeconfigArgs.Namespace = &namespace
	rootCmd.PersistentFlags().StringVarP(kubeconfigArgs.Namespace, "namespace", "n", *kubeconfigArgs.Namespace,
		"The namespace the pipeline is deployed to, defaults to $NAMESPACE.")

	rootCmd.DisableAutoGenTag = true
	rootCmd.SetOut(os.Stdout)
}

func main() {
	if err := loadConfig(""); err != nil {
		logger.Println(`✗`, err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		logger.Println(`✗`, err)
		os.Exit(1)
	}
}

func envNamespace() string {
	if ns := os.Getenv("NAMESPACE"); ns != "" {
		return ns
	}
	return defaultNamespace
}

// loadConfig reads the config file, an empty path means '$HOME/.pipectl/config'.
// On error the in-memory config is left unchanged.
func loadConfig(path string) error {
	c, err := config.Read(path)
	if err != nil {
		return fmt.Errorf("loading the config failed, error: %w", err)
	}

	cfg = c
	owner = ssa.Owner{
		Field: cfg.FieldManager.Name,
		Group: cfg.FieldManager.Group,
	}
	return nil
}
