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

package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/tekton-cd/pipectl/pkg/cluster"
	"github.com/tekton-cd/pipectl/pkg/objectutil"
)

// fakeClient is an in-memory cluster.Client.
type fakeClient struct {
	mu sync.Mutex

	preflightErr error
	namespaces   map[string]bool

	// applied holds the object names in apply order, generateName objects
	// are recorded with their prefix.
	applied []string
	failOn  string

	services   []cluster.Resource
	served     map[string][]cluster.Resource
	listErr    map[string]error
	readyAt    time.Time
	neverReady bool
	statusErr  error
	statusHits int

	endpoint  cluster.Endpoint
	exposeErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		namespaces: map[string]bool{},
		served:     map[string][]cluster.Resource{},
	}
}

func (f *fakeClient) Preflight(ctx context.Context) error {
	return f.preflightErr
}

func (f *fakeClient) EnsureEnvironment(ctx context.Context, namespace string) (cluster.Environment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.namespaces[namespace] {
		return cluster.Environment{Namespace: namespace}, false, nil
	}
	f.namespaces[namespace] = true
	return cluster.Environment{Namespace: namespace}, true, nil
}

func (f *fakeClient) ApplyResource(ctx context.Context, env cluster.Environment, objects []*unstructured.Unstructured, opts cluster.ApplyOptions) (*cluster.ChangeSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cs := cluster.NewChangeSet()
	for _, obj := range objects {
		name := obj.GetName()
		action := cluster.ConfiguredAction
		if name == "" {
			name = obj.GetGenerateName()
			action = cluster.CreatedAction
		}
		if name == f.failOn {
			return cs, fmt.Errorf("%s is invalid", objectutil.FmtUnstructured(obj))
		}
		f.applied = append(f.applied, name)
		cs.Add(cluster.ChangeSetEntry{
			Subject: objectutil.FmtKindName(obj.GetKind(), env.Namespace, name),
			Action:  action,
		})
	}
	return cs, nil
}

func (f *fakeClient) GetResourceStatus(ctx context.Context, env cluster.Environment, selector map[string]string) (cluster.WorkloadStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statusHits++
	if f.statusErr != nil {
		return cluster.WorkloadStatus{}, f.statusErr
	}

	ws := cluster.WorkloadStatus{Selector: labels.SelectorFromSet(selector).String(), Total: 1, Running: 1}
	if !f.neverReady && !time.Now().Before(f.readyAt) {
		ws.Ready = 1
	}
	return ws, nil
}

func (f *fakeClient) ExposeService(ctx context.Context, env cluster.Environment, service string) (cluster.Endpoint, error) {
	if f.exposeErr != nil {
		return cluster.Endpoint{}, f.exposeErr
	}
	return f.endpoint, nil
}

func (f *fakeClient) ListResources(ctx context.Context, env cluster.Environment, gvk schema.GroupVersionKind, selector labels.Selector) ([]cluster.Resource, error) {
	if err, ok := f.listErr[gvk.Kind]; ok {
		return nil, err
	}

	var list []cluster.Resource
	if gvk.Kind == "Service" {
		list = f.services
	} else {
		var ok bool
		if list, ok = f.served[gvk.Kind]; !ok {
			return nil, fmt.Errorf("%s: %w", gvk.Kind, cluster.ErrKindNotServed)
		}
	}

	if selector == nil {
		return list, nil
	}
	var result []cluster.Resource
	for _, r := range list {
		if selector.Matches(labels.Set(r.Labels)) {
			result = append(result, r)
		}
	}
	return result, nil
}

func (f *fakeClient) appliedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.applied...)
}

// recordingLogger keeps the printed lines.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(prefix, format string, a ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, prefix+" "+fmt.Sprintf(format, a...))
}

func (l *recordingLogger) Actionf(format string, a ...interface{})  { l.add("►", format, a...) }
func (l *recordingLogger) Waitingf(format string, a ...interface{}) { l.add("◎", format, a...) }
func (l *recordingLogger) Successf(format string, a ...interface{}) { l.add("✔", format, a...) }
func (l *recordingLogger) Warningf(format string, a ...interface{}) { l.add("⚠️", format, a...) }
func (l *recordingLogger) Failuref(format string, a ...interface{}) { l.add("✗", format, a...) }

func (l *recordingLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}
