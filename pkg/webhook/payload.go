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

// Package webhook builds and sends the GitHub push events
// consumed by the Tekton EventListener.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
)

const (
	EventHeader     = "X-GitHub-Event"
	SignatureHeader = "X-Hub-Signature-256"
	PushEvent       = "push"
)

// Payload is the subset of a GitHub push event read by the TriggerBinding.
type Payload struct {
	Ref        string     `json:"ref"`
	After      string     `json:"after,omitempty"`
	HeadCommit *Commit    `json:"head_commit,omitempty"`
	Repository Repository `json:"repository"`
}

type Commit struct {
	ID string `json:"id"`
}

type Repository struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	CloneURL string `json:"clone_url"`
}

// Response is the body returned by the EventListener sink.
type Response struct {
	EventListener string `json:"eventListener"`
	Namespace     string `json:"namespace"`
	EventID       string `json:"eventID"`
}

// NewPushPayload returns a push event for the given repository URL and git ref.
// A ref without the refs/ prefix is treated as a branch name.
func NewPushPayload(repositoryURL, ref, revision string) Payload {
	if ref != "" && !strings.HasPrefix(ref, "refs/") {
		ref = "refs/heads/" + ref
	}

	p := Payload{
		Ref: ref,
		Repository: Repository{
			Name:     strings.TrimSuffix(path.Base(strings.TrimSuffix(repositoryURL, "/")), ".git"),
			URL:      strings.TrimSuffix(repositoryURL, ".git"),
			CloneURL: repositoryURL,
		},
	}
	if revision != "" {
		p.After = revision
		p.HeadCommit = &Commit{ID: revision}
	}
	return p
}

// Validate checks the fields the TriggerBinding depends on.
func (p Payload) Validate() error {
	if p.Repository.URL == "" {
		return fmt.Errorf("repository URL is required")
	}
	if p.Ref == "" {
		return fmt.Errorf("git ref is required")
	}
	return nil
}

// Signature returns the HMAC hex digest of the body in the GitHub format 'sha256=<digest>'.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Send posts the payload to the EventListener URL.
// When a secret is given the body is signed.
func Send(ctx context.Context, httpClient *http.Client, url string, p Payload, secret string) (*Response, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, PushEvent)
	if secret != "" {
		req.Header.Set(SignatureHeader, Signature(secret, body))
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending event to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("sending event to %s failed, status: %s, body: %s", url, resp.Status, strings.TrimSpace(string(data)))
	}

	result := &Response{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return nil, fmt.Errorf("decoding response from %s failed: %w", url, err)
		}
	}
	return result, nil
}

// CurlCommand renders the curl invocation equivalent to Send.
// Arguments are single quoted for POSIX shells.
func CurlCommand(url string, p Payload, secret string) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "curl -X POST %s \\\n", shellQuote(url))
	fmt.Fprintf(&b, "  -H %s \\\n", shellQuote("Content-Type: application/json"))
	fmt.Fprintf(&b, "  -H %s \\\n", shellQuote(EventHeader+": "+PushEvent))
	if secret != "" {
		fmt.Fprintf(&b, "  -H %s \\\n", shellQuote(SignatureHeader+": "+Signature(secret, body)))
	}
	fmt.Fprintf(&b, "  -d %s", shellQuote(string(body)))
	return b.String(), nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
