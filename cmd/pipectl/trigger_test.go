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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/tekton-cd/pipectl/pkg/webhook"
)

func TestTrigger(t *testing.T) {
	g := NewWithT(t)

	var received webhook.Payload
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get(webhook.SignatureHeader)
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"eventListener":"cd-listener","namespace":"tekton-cd","eventID":"abc123"}`))
	}))
	defer server.Close()

	output, err := executeCommand(fmt.Sprintf(
		"trigger --url %s --git-url https://github.com/org/app.git --ref main --git-revision 0a1b2c --secret s3cr3t",
		server.URL,
	))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(output).To(ContainSubstring("abc123"))

	g.Expect(received.Ref).To(Equal("refs/heads/main"))
	g.Expect(received.Repository.URL).To(Equal("https://github.com/org/app"))
	g.Expect(received.HeadCommit.ID).To(Equal("0a1b2c"))
	g.Expect(signature).To(HavePrefix("sha256="))

	_, err = executeCommand("trigger --git-url https://github.com/org/app")
	g.Expect(err).To(MatchError("--url is required"))
}
