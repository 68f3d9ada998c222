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
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tekton-cd/pipectl/pkg/webhook"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Trigger sends a GitHub push event to an EventListener.",
	Long: `The trigger command posts a push event with the given repository and ref
to the EventListener URL, the same request a GitHub webhook makes.
When a secret is given, the body is signed with HMAC SHA-256.`,
	Example: `  # Trigger a run through a port-forwarded EventListener
  pipectl trigger --url http://localhost:8080 --git-url https://github.com/org/app --ref main
`,
	Args: cobra.NoArgs,
	RunE: runTriggerCmd,
}

type triggerFlags struct {
	url      string
	gitURL   string
	ref      string
	revision string
	secret   string
}

var triggerArgs triggerFlags

func init() {
	triggerCmd.Flags().StringVar(&triggerArgs.url, "url", "", "The EventListener URL.")
	triggerCmd.Flags().StringVar(&triggerArgs.gitURL, "git-url", "",
		"The repository URL sent in the event, defaults to the config webhook repositoryURL.")
	triggerCmd.Flags().StringVar(&triggerArgs.ref, "ref", "",
		"The git ref sent in the event, defaults to the config webhook ref.")
	triggerCmd.Flags().StringVar(&triggerArgs.revision, "git-revision", "", "The commit SHA sent in the event.")
	triggerCmd.Flags().StringVar(&triggerArgs.secret, "secret", "", "The webhook secret used to sign the event.")

	rootCmd.AddCommand(triggerCmd)
}

func runTriggerCmd(cmd *cobra.Command, args []string) error {
	if triggerArgs.url == "" {
		return fmt.Errorf("--url is required")
	}

	gitURL := triggerArgs.gitURL
	if gitURL == "" {
		gitURL = cfg.Webhook.RepositoryURL
	}
	ref := triggerArgs.ref
	if ref == "" {
		ref = cfg.Webhook.Ref
	}

	payload := webhook.NewPushPayload(gitURL, ref, triggerArgs.revision)

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	logger.Actionf("sending push event for %s %s to %s", payload.Repository.URL, payload.Ref, triggerArgs.url)
	resp, err := webhook.Send(ctx, &http.Client{}, triggerArgs.url, payload, triggerArgs.secret)
	if err != nil {
		return err
	}

	if resp.EventID != "" {
		logger.Successf("event %s accepted by %s/%s", resp.EventID, resp.Namespace, resp.EventListener)
		rootCmd.Println(resp.EventID)
	} else {
		logger.Successf("event accepted")
	}
	return nil
}
