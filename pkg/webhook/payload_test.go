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

package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mattn/go-shellwords"
	. "github.com/onsi/gomega"
)

func TestNewPushPayload(t *testing.T) {
	g := NewWithT(t)

	p := NewPushPayload("https://github.com/org/app.git", "main", "a1b2c3")
	g.Expect(p.Ref).To(Equal("refs/heads/main"))
	g.Expect(p.Repository.Name).To(Equal("app"))
	g.Expect(p.Repository.URL).To(Equal("https://github.com/org/app"))
	g.Expect(p.Repository.CloneURL).To(Equal("https://github.com/org/app.git"))
	g.Expect(p.HeadCommit.ID).To(Equal("a1b2c3"))
	g.Expect(p.Validate()).To(Succeed())

	p = NewPushPayload("https://github.com/org/app", "refs/tags/v1.0.0", "")
	g.Expect(p.Ref).To(Equal("refs/tags/v1.0.0"))
	g.Expect(p.HeadCommit).To(BeNil())

	g.Expect(NewPushPayload("", "main", "").Validate()).NotTo(Succeed())
	g.Expect(NewPushPayload("https://github.com/org/app", "", "").Validate()).NotTo(Succeed())
}

func TestSend(t *testing.T) {
	g := NewWithT(t)
	secret := "s3cr3t"

	var received Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get(EventHeader) != PushEvent || r.Header.Get(SignatureHeader) != Signature(secret, body) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"eventListener":"github-listener","namespace":"tekton-cd","eventID":"abc"}`))
	}))
	defer server.Close()

	payload := NewPushPayload("https://github.com/org/app.git", "main", "")

	resp, err := Send(context.Background(), server.Client(), server.URL, payload, secret)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(resp.EventListener).To(Equal("github-listener"))
	g.Expect(resp.EventID).To(Equal("abc"))
	g.Expect(received.Repository.URL).To(Equal("https://github.com/org/app"))
	g.Expect(received.Ref).To(Equal("refs/heads/main"))

	_, err = Send(context.Background(), server.Client(), server.URL, payload, "wrong")
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("403"))
}

func TestCurlCommand(t *testing.T) {
	g := NewWithT(t)

	cmd, err := CurlCommand("http://localhost:8080", NewPushPayload("https://github.com/org/app", "main", ""), "")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cmd).To(ContainSubstring("curl -X POST 'http://localhost:8080'"))
	g.Expect(cmd).To(ContainSubstring(`"ref":"refs/heads/main"`))
	g.Expect(cmd).NotTo(ContainSubstring(SignatureHeader))

	cmd, err = CurlCommand("http://localhost:8080", NewPushPayload("https://github.com/org/app", "main", ""), "s3cr3t")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cmd).To(ContainSubstring(SignatureHeader + ": sha256="))
}

func TestCurlCommandQuoting(t *testing.T) {
	g := NewWithT(t)

	p := NewPushPayload("https://example.com/o'brien/app", "it's-a-branch", "")
	cmd, err := CurlCommand("http://localhost:8080", p, "")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cmd).To(ContainSubstring(`o'\''brien`))

	args, err := shellwords.Parse(strings.ReplaceAll(cmd, "\\\n", ""))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(args).To(HaveLen(10))
	g.Expect(args[len(args)-2]).To(Equal("-d"))

	body, err := json.Marshal(p)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(args[len(args)-1]).To(Equal(string(body)))
}
