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

	"github.com/spf13/cobra"

	"github.com/tekton-cd/pipectl/pkg/definition"
	"github.com/tekton-cd/pipectl/pkg/registry"
)

var pushCmd = &cobra.Command{
	Use:   "push OCIURL",
	Short: "Push uploads the pipeline definitions to a container registry.",
	Long: `The push command verifies that the definitions directory can be loaded,
packages the directory into an OCI artifact and pushes it to the container registry.
The push command uses the credentials from '~/.docker/config.json'.`,
	Example: `  # Push the definitions to GitHub Container Registry
  pipectl push oci://ghcr.io/org/pipeline:v1.0.0 --path ./deploy/tekton

  # Push the definitions encrypted with age
  pipectl push oci://ghcr.io/org/pipeline:v1.0.0 --age-recipients ./recipients.txt
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPushCmd,
}

type pushFlags struct {
	path          string
	ageRecipients string
}

var pushArgs = pushFlags{path: defaultDefinitionsPath}

func init() {
	pushCmd.Flags().StringVar(&pushArgs.path, "path", pushArgs.path,
		"Path to the directory that contains the pipeline definitions.")
	pushCmd.Flags().StringVar(&pushArgs.ageRecipients, "age-recipients", "",
		"Path to a file containing one or more age public keys.")

	rootCmd.AddCommand(pushCmd)
}

func runPushCmd(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("you must specify an artifact name e.g. 'oci://ghcr.io/org/repo:tag'")
	}

	url, err := registry.ParseURL(args[0])
	if err != nil {
		return err
	}

	found := 0
	for _, def := range cfg.Definitions {
		p, ok, err := def.Resolve(pushArgs.path)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if _, err := definition.Load(p); err != nil {
			return fmt.Errorf("%s is invalid: %w", def, err)
		}
		found++
	}
	if found == 0 {
		return fmt.Errorf("no definitions found in %s", pushArgs.path)
	}

	recipients, err := registry.ParseAgeRecipients(pushArgs.ageRecipients)
	if err != nil {
		return fmt.Errorf("reading age recipients failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	logger.Println("pushing image", url)
	meta, err := registry.Push(ctx, url, pushArgs.path, VERSION, recipients)
	if err != nil {
		return fmt.Errorf("pushing image failed: %w", err)
	}

	logger.Println("published digest", meta.Digest)
	rootCmd.Println(meta.Digest)

	return nil
}
