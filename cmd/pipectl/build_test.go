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
	"testing"

	. "github.com/onsi/gomega"
)

func TestBuild(t *testing.T) {
	g := NewWithT(t)
	id := "build-" + randStringRunes(5)

	dir, err := makeTestDir(id, testDefinitions(id))
	g.Expect(err).NotTo(HaveOccurred())

	t.Run("prints yaml in apply order", func(t *testing.T) {
		output, err := executeCommand(fmt.Sprintf("build --path %s", dir))
		g.Expect(err).NotTo(HaveOccurred())

		g.Expect(output).To(ContainSubstring("skipping storage-class"))
		g.Expect(output).To(MatchRegexp(`(?s)name: cluster-tasks.*name: tasks.*name: source.*name: pipeline.*name: el-` + id + `.*generateName: run-`))
	})

	t.Run("prints json", func(t *testing.T) {
		output, err := executeCommand(fmt.Sprintf("build --path %s -o json", dir))
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(output).To(ContainSubstring(`"kind": "List"`))
	})

	t.Run("rejects unknown formats", func(t *testing.T) {
		_, err := executeCommand(fmt.Sprintf("build --path %s -o toml", dir))
		g.Expect(err).To(MatchError(ContainSubstring("unsupported output format")))
	})

	t.Run("rejects positional arguments", func(t *testing.T) {
		for _, cmd := range []string{
			fmt.Sprintf("build %s", dir),
			"status extra",
			"trigger extra --url http://localhost:8080",
			"config view extra",
			fmt.Sprintf("push oci://%s/%s:v1 extra", registryHost, id),
		} {
			_, err := executeCommand(cmd)
			g.Expect(err).To(HaveOccurred(), cmd)
		}
	})

	t.Run("fails when no definition is found", func(t *testing.T) {
		empty, err := makeTestDir(id+"-empty", nil)
		g.Expect(err).NotTo(HaveOccurred())

		_, err = executeCommand(fmt.Sprintf("build --path %s", empty))
		g.Expect(err).To(MatchError(ContainSubstring("no definitions found")))
	})
}
