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

// Package definition holds the ordered list of resource definitions
// that make up the continuous delivery pipeline and the loaders
// that turn a definition into Kubernetes objects.
package definition

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Definition is a named path to a manifest file, a directory of manifests or a Kustomize overlay.
// Relative paths are resolved against the definitions directory.
type Definition struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (d Definition) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Path)
}

// DefaultOrder returns the definitions in dependency order:
// consumers are always listed after the objects they reference,
// and storage comes before the pipeline that mounts it.
func DefaultOrder() []Definition {
	return []Definition{
		{Name: "cluster-tasks", Path: "cluster-tasks.yaml"},
		{Name: "tasks", Path: "tasks.yaml"},
		{Name: "storage-class", Path: "storageclass.yaml"},
		{Name: "pvc", Path: "pvc.yaml"},
		{Name: "pipeline", Path: "pipeline.yaml"},
		{Name: "trigger-binding", Path: "triggerbinding.yaml"},
		{Name: "trigger-template", Path: "triggertemplate.yaml"},
		{Name: "event-listener", Path: "eventlistener.yaml"},
	}
}

// DefaultRunOnce returns the one-shot PipelineRun definition.
func DefaultRunOnce() Definition {
	return Definition{Name: "pipeline-run", Path: "pipelinerun.yaml"}
}

// Resolve returns the absolute location of the definition in the given directory
// and reports whether it exists.
func (d Definition) Resolve(dir string) (string, bool, error) {
	p := d.Path
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}

	_, err := os.Stat(p)
	switch {
	case err == nil:
		return p, true, nil
	case errors.Is(err, os.ErrNotExist):
		return p, false, nil
	default:
		return p, false, err
	}
}
