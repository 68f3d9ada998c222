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
)

var pullCmd = &cobra.Command{
	Use:   "pull OCIURL",
	Short: "Pull downloads the pipeline definitions from a container registry.",
	Long: `The pull command downloads the OCI artifact, verifies its checksum and extracts
the definitions into the output directory.
The pull command uses the credentials from '~/.docker/config.json'.`,
	Example: `  # Pull the definitions into ./deploy/tekton
  pipectl pull oci://ghcr.io/org/pipeline:v1.0.0 --output ./deploy/tekton

  # Pull the newest 1.x version
  pipectl pull oci://ghcr.io/org/pipeline --semver 1.x --output ./deploy/tekton
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPullCmd,
}

type pullFlags struct {
	output        string
	semverExp     string
	ageIdentities string
}

var pullArgs pullFlags

func init() {
	pullCmd.Flags().StringVarP(&pullArgs.output, "output", "o", "",
		"Path to the directory where the definitions are extracted.")
	pullCmd.Flags().StringVar(&pullArgs.semverExp, "semver", "",
		"Pull the newest tag matching the semantic version constraint e.g. '1.x'.")
	pullCmd.Flags().StringVar(&pullArgs.ageIdentities, "age-identities", "",
		"Path to a file containing one or more age identities (private keys generated by age-keygen).")

	rootCmd.AddCommand(pullCmd)
}

func runPullCmd(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("you must specify an artifact name e.g. 'oci://ghcr.io/org/repo:tag'")
	}
	if pullArgs.output == "" {
		return fmt.Errorf("--output is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	src := artifactSource{
		url:           args[0],
		semverExp:     pullArgs.semverExp,
		ageIdentities: pullArgs.ageIdentities,
	}
	meta, err := src.fetch(ctx, pullArgs.output)
	if err != nil {
		return err
	}

	rootCmd.Println(meta.Digest)
	return nil
}
