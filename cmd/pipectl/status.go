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
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/duration"

	"github.com/tekton-cd/pipectl/pkg/cluster"
	"github.com/tekton-cd/pipectl/pkg/orchestrator"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Status lists the pipeline objects found in the namespace and their status.",
	Example: `  # List the Tekton and Triggers objects in the tekton-cd namespace
  pipectl status -n tekton-cd
`,
	Args: cobra.NoArgs,
	RunE: runStatusCmd,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	kubeClient, err := newClusterClient(kubeconfigArgs)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	env := cluster.Environment{Namespace: *kubeconfigArgs.Namespace}
	if err := kubeClient.Preflight(ctx); err != nil {
		return err
	}

	o := orchestrator.New(kubeClient, logger, orchestrator.Options{Namespace: env.Namespace})
	resources, skipped := o.Summarize(ctx, env)
	printSummary(resources, skipped)

	return nil
}

func printSummary(resources []cluster.Resource, skipped []string) {
	if len(skipped) > 0 {
		logger.Println("kinds skipped:", strings.Join(skipped, ", "))
	}
	if len(resources) == 0 {
		logger.Println("no objects found")
		return
	}

	var rows [][]string
	for _, r := range resources {
		age := "-"
		if !r.Created.IsZero() {
			age = duration.HumanDuration(time.Since(r.Created))
		}
		rows = append(rows, []string{r.Kind, r.Name, r.Status, age, r.Message})
	}
	printTable(rootCmd.OutOrStdout(), []string{"kind", "name", "status", "age", "message"}, rows)
}

func printTable(writer io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}
