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
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/kustomize/api/krusty"
	kustypes "sigs.k8s.io/kustomize/api/types"
	"sigs.k8s.io/kustomize/kyaml/filesys"

	"github.com/tekton-cd/pipectl/pkg/objectutil"
)

// Load reads the Kubernetes objects from the given path.
// The path can be a manifest file, a directory tree of manifests or
// a directory that contains a kustomization.yaml.
func Load(p string) ([]*unstructured.Unstructured, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return nil, err
	}

	var objects []*unstructured.Unstructured
	switch {
	case fi.IsDir() && isKustomization(p):
		data, err := buildKustomization(p)
		if err != nil {
			return nil, err
		}
		objects, err = objectutil.ReadObjects(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	case fi.IsDir():
		manifests, err := scanRec(p)
		if err != nil {
			return nil, err
		}
		for _, manifest := range manifests {
			objs, err := readFile(manifest)
			if err != nil {
				return nil, err
			}
			objects = append(objects, objs...)
		}
	default:
		objects, err = readFile(p)
		if err != nil {
			return nil, err
		}
	}

	if len(objects) == 0 {
		return nil, fmt.Errorf("%s: no Kubernetes objects found", p)
	}

	objectutil.Sort(objects)
	return objects, nil
}

func readFile(manifest string) ([]*unstructured.Unstructured, error) {
	ms, err := os.Open(manifest)
	if err != nil {
		return nil, err
	}
	defer ms.Close()

	objs, err := objectutil.ReadObjects(bufio.NewReader(ms))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifest, err)
	}
	return objs, nil
}

func scanRec(dir string) ([]string, error) {
	var manifests []string
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if file.IsDir() {
			m, err := scanRec(filepath.Join(dir, file.Name()))
			if err != nil {
				return nil, err
			}
			manifests = append(manifests, m...)
			continue
		}
		if matchExt(file.Name()) {
			manifests = append(manifests, filepath.Join(dir, file.Name()))
		}
	}
	return manifests, nil
}

func matchExt(f string) bool {
	ext := filepath.Ext(f)
	return ext == ".yaml" || ext == ".yml" || ext == ".json"
}

func isKustomization(dir string) bool {
	for _, name := range []string{"kustomization.yaml", "kustomization.yml", "Kustomization"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

var kustomizeBuildMutex sync.Mutex

func buildKustomization(base string) ([]byte, error) {
	kustomizeBuildMutex.Lock()
	defer kustomizeBuildMutex.Unlock()

	base, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}

	buildOptions := &krusty.Options{
		LoadRestrictions: kustypes.LoadRestrictionsNone,
		PluginConfig:     kustypes.DisabledPluginConfig(),
	}

	k := krusty.MakeKustomizer(buildOptions)
	m, err := k.Run(filesys.MakeFsOnDisk(), base)
	if err != nil {
		return nil, fmt.Errorf("kustomize build %s failed: %w", base, err)
	}

	return m.AsYaml()
}
