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
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	g := NewWithT(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	output, err := executeCommand("config init")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(output).To(ContainSubstring(filepath.Join(home, ".pipectl", "config")))

	data, err := os.ReadFile(filepath.Join(home, ".pipectl", "config"))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(data)).To(ContainSubstring("kind: Config"))

	output, err = executeCommand("config view")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(output).To(ContainSubstring("apiVersion: pipectl.dev/v1"))
	g.Expect(output).To(ContainSubstring("path: eventlistener.yaml"))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	current, currentOwner := cfg, owner
	t.Cleanup(func() { cfg, owner = current, currentOwner })

	t.Run("fails for an invalid config", func(t *testing.T) {
		g := NewWithT(t)
		path := filepath.Join(dir, "invalid")
		g.Expect(os.WriteFile(path, []byte("fieldManager:\n  name: \"\"\n  group: pipectl.dev\n"), 0o600)).To(Succeed())

		err := loadConfig(path)
		g.Expect(err).To(MatchError(ContainSubstring("field manager name can't be empty")))
		g.Expect(cfg).To(BeIdenticalTo(current))
	})

	t.Run("fails for malformed yaml", func(t *testing.T) {
		g := NewWithT(t)
		path := filepath.Join(dir, "malformed")
		g.Expect(os.WriteFile(path, []byte("definitions: [\n"), 0o600)).To(Succeed())

		g.Expect(loadConfig(path)).To(MatchError(ContainSubstring("loading the config failed")))
		g.Expect(cfg).To(BeIdenticalTo(current))
	})

	t.Run("defaults when the file is missing", func(t *testing.T) {
		g := NewWithT(t)
		g.Expect(loadConfig(filepath.Join(dir, "missing"))).To(Succeed())
		g.Expect(owner.Field).To(Equal(cfg.FieldManager.Name))
	})
}

func TestEnvNamespace(t *testing.T) {
	g := NewWithT(t)

	t.Setenv("NAMESPACE", "")
	g.Expect(envNamespace()).To(Equal(defaultNamespace))

	t.Setenv("NAMESPACE", "ci")
	g.Expect(envNamespace()).To(Equal("ci"))
}
