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

package definition

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func writeFiles(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const pvcManifest = `---
apiVersion: v1
kind: PersistentVolumeClaim
metadata:
  name: source-pvc
spec:
  accessModes: ["ReadWriteOnce"]
  resources:
    requests:
      storage: 1Gi
`

const pipelineManifest = `---
apiVersion: tekton.dev/v1beta1
kind: Pipeline
metadata:
  name: cd-pipeline
spec:
  tasks: []
---
apiVersion: tekton.dev/v1beta1
kind: Task
metadata:
  name: lint
spec:
  steps: []
`

func TestDefaultOrder(t *testing.T) {
	g := NewWithT(t)

	var names []string
	for _, d := range DefaultOrder() {
		names = append(names, d.Name)
	}

	g.Expect(names).To(Equal([]string{
		"cluster-tasks",
		"tasks",
		"storage-class",
		"pvc",
		"pipeline",
		"trigger-binding",
		"trigger-template",
		"event-listener",
	}))
}

func TestResolve(t *testing.T) {
	g := NewWithT(t)
	dir := writeFiles(t, map[string]string{"pvc.yaml": pvcManifest})

	p, found, err := Definition{Name: "pvc", Path: "pvc.yaml"}.Resolve(dir)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(found).To(BeTrue())
	g.Expect(p).To(Equal(filepath.Join(dir, "pvc.yaml")))

	_, found, err = Definition{Name: "pipeline", Path: "pipeline.yaml"}.Resolve(dir)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(found).To(BeFalse())

	abs := filepath.Join(dir, "pvc.yaml")
	p, found, err = Definition{Name: "abs", Path: abs}.Resolve("/does/not/matter")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(found).To(BeTrue())
	g.Expect(p).To(Equal(abs))
}

func TestLoad(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"pvc.yaml":                   pvcManifest,
		"pipeline.yaml":              pipelineManifest,
		"empty.yaml":                 "---\n",
		"tree/a/pvc.yaml":            pvcManifest,
		"tree/b/pipeline.yml":        pipelineManifest,
		"tree/b/README.md":           "not a manifest",
		"overlay/kustomization.yaml": "resources:\n- pvc.yaml\nnamePrefix: dev-\n",
		"overlay/pvc.yaml":           pvcManifest,
	})

	t.Run("reads a file", func(t *testing.T) {
		g := NewWithT(t)
		objects, err := Load(filepath.Join(dir, "pvc.yaml"))
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(objects).To(HaveLen(1))
		g.Expect(objects[0].GetName()).To(Equal("source-pvc"))
	})

	t.Run("orders objects by kind", func(t *testing.T) {
		g := NewWithT(t)
		objects, err := Load(filepath.Join(dir, "pipeline.yaml"))
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(objects).To(HaveLen(2))
		g.Expect(objects[0].GetKind()).To(Equal("Task"))
		g.Expect(objects[1].GetKind()).To(Equal("Pipeline"))
	})

	t.Run("scans a directory tree", func(t *testing.T) {
		g := NewWithT(t)
		objects, err := Load(filepath.Join(dir, "tree"))
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(objects).To(HaveLen(3))
		g.Expect(objects[0].GetKind()).To(Equal("PersistentVolumeClaim"))
	})

	t.Run("builds a kustomization", func(t *testing.T) {
		g := NewWithT(t)
		objects, err := Load(filepath.Join(dir, "overlay"))
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(objects).To(HaveLen(1))
		g.Expect(objects[0].GetName()).To(Equal("dev-source-pvc"))
	})

	t.Run("fails for empty files", func(t *testing.T) {
		g := NewWithT(t)
		_, err := Load(filepath.Join(dir, "empty.yaml"))
		g.Expect(err).To(HaveOccurred())
		g.Expect(err.Error()).To(ContainSubstring("no Kubernetes objects found"))
	})

	t.Run("fails for malformed files", func(t *testing.T) {
		g := NewWithT(t)
		bad := writeFiles(t, map[string]string{"bad.yaml": "kind: [\n"})
		_, err := Load(filepath.Join(bad, "bad.yaml"))
		g.Expect(err).To(HaveOccurred())
		g.Expect(err.Error()).To(ContainSubstring("bad.yaml"))
	})
}

func TestLoadDeployManifests(t *testing.T) {
	g := NewWithT(t)
	dir := filepath.Join("..", "..", "deploy", "tekton")

	kinds := map[string]string{}
	objects := map[string]*unstructured.Unstructured{}
	for _, d := range append(DefaultOrder(), DefaultRunOnce()) {
		p, found, err := d.Resolve(dir)
		g.Expect(err).NotTo(HaveOccurred())
		if !found {
			continue
		}

		list, err := Load(p)
		g.Expect(err).NotTo(HaveOccurred(), d.String())
		kinds[d.Name] = list[0].GetKind()
		objects[d.Name] = list[0]
	}

	g.Expect(kinds).To(Equal(map[string]string{
		"cluster-tasks":    "ClusterTask",
		"tasks":            "Task",
		"pvc":              "PersistentVolumeClaim",
		"pipeline":         "Pipeline",
		"trigger-binding":  "TriggerBinding",
		"trigger-template": "TriggerTemplate",
		"event-listener":   "EventListener",
		"pipeline-run":     "PipelineRun",
	}))

	t.Run("claim uses the default storage class", func(t *testing.T) {
		g := NewWithT(t)
		_, found, err := unstructured.NestedString(objects["pvc"].Object, "spec", "storageClassName")
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(found).To(BeFalse())
	})

	t.Run("clone checks out fetched refs", func(t *testing.T) {
		g := NewWithT(t)
		steps, found, err := unstructured.NestedSlice(objects["cluster-tasks"].Object, "spec", "steps")
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(found).To(BeTrue())

		script, _, err := unstructured.NestedString(steps[0].(map[string]interface{}), "script")
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(script).To(ContainSubstring(`git fetch -q --depth 1 origin "$(params.revision)"`))
		g.Expect(script).To(ContainSubstring("git checkout -q FETCH_HEAD"))
		g.Expect(script).NotTo(ContainSubstring("git clone"))
	})

	t.Run("binding passes the pushed ref", func(t *testing.T) {
		g := NewWithT(t)
		params, _, err := unstructured.NestedSlice(objects["trigger-binding"].Object, "spec", "params")
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(params).To(ContainElement(HaveKeyWithValue("value", "$(body.ref)")))
	})
}
