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

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/tekton-cd/pipectl/pkg/definition"
	"github.com/tekton-cd/pipectl/pkg/objectutil"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build prints the pipeline definitions in apply order as a multi-doc YAML or a JSON list.",
	Long: `The build command loads the pipeline definitions in the order they are applied
and prints the resulting objects to stdout. Missing definitions are reported on stderr.
The build command doesn't connect to the cluster.`,
	Example: `  # Print the definitions as YAML
  pipectl build --path ./deploy/tekton

  # Print the definitions as a JSON list
  pipectl build -o json
`,
	Args: cobra.NoArgs,
	RunE: runBuildCmd,
}

type buildFlags struct {
	path   string
	output string
}

var buildArgs = buildFlags{path: defaultDefinitionsPath, output: "yaml"}

func init() {
	buildCmd.Flags().StringVar(&buildArgs.path, "path", buildArgs.path,
		"Path to the directory that contains the pipeline definitions.")
	buildCmd.Flags().StringVarP(&buildArgs.output, "output", "o", buildArgs.output,
		"Write the resulting objects to stdout in YAML or JSON format.")

	rootCmd.AddCommand(buildCmd)
}

func runBuildCmd(cmd *cobra.Command, args []string) error {
	if buildArgs.output != "yaml" && buildArgs.output != "json" {
		return fmt.Errorf("unsupported output format %s, can be yaml or json", buildArgs.output)
	}

	definitions := append([]definition.Definition{}, cfg.Definitions...)
	if cfg.RunOnce != nil {
		definitions = append(definitions, *cfg.RunOnce)
	}

	var objects []*unstructured.Unstructured
	for _, def := range definitions {
		p, found, err := def.Resolve(buildArgs.path)
		if err != nil {
			return err
		}
		if !found {
			logger.Println("skipping", def.Name, "file not found", p)
			continue
		}

		objs, err := definition.Load(p)
		if err != nil {
			return fmt.Errorf("%s build failed: %w", def, err)
		}
		objects = append(objects, objs...)
	}

	if len(objects) == 0 {
		return fmt.Errorf("no definitions found in %s", buildArgs.path)
	}

	switch buildArgs.output {
	case "yaml":
		yml, err := objectutil.ObjectsToYAML(objects)
		if err != nil {
			return err
		}
		rootCmd.Println(yml)
	case "json":
		json, err := objectutil.ObjectsToJSON(objects)
		if err != nil {
			return err
		}
		rootCmd.Println(json)
	}

	return nil
}
