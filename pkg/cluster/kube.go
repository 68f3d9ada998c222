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

package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fluxcd/pkg/ssa"
	corev1 "k8s.io/api/core/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	apiruntime "k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/cli-utils/pkg/kstatus/polling"
	"sigs.k8s.io/cli-utils/pkg/kstatus/status"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/apiutil"

	"github.com/tekton-cd/pipectl/pkg/objectutil"
)

// KubeClient implements Client on top of the Kubernetes API.
type KubeClient struct {
	client    client.Client
	discovery discovery.DiscoveryInterface
	resMgr    *ssa.ResourceManager
	owner     ssa.Owner

	// RouteInterval and RouteTimeout bound the wait for the router to assign a host.
	RouteInterval time.Duration
	RouteTimeout  time.Duration
}

var _ Client = &KubeClient{}

func newScheme() *apiruntime.Scheme {
	scheme := apiruntime.NewScheme()
	_ = apiextensionsv1.AddToScheme(scheme)
	_ = corev1.AddToScheme(scheme)
	return scheme
}

// NewKubeClient creates a KubeClient for the given REST config.
// The owner field and group are used as the server-side apply field manager.
func NewKubeClient(cfg *rest.Config, owner ssa.Owner) (*KubeClient, error) {
	restMapper, err := apiutil.NewDynamicRESTMapper(cfg)
	if err != nil {
		return nil, fmt.Errorf("kubernetes client initialization failed: %w", err)
	}

	kubeClient, err := client.New(cfg, client.Options{
		Scheme: newScheme(),
		Mapper: restMapper,
	})
	if err != nil {
		return nil, fmt.Errorf("kubernetes client initialization failed: %w", err)
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery client initialization failed: %w", err)
	}

	poller := polling.NewStatusPoller(kubeClient, restMapper, polling.Options{})

	return &KubeClient{
		client:        kubeClient,
		discovery:     discoveryClient,
		resMgr:        ssa.NewResourceManager(kubeClient, poller, owner),
		owner:         owner,
		RouteInterval: time.Second,
		RouteTimeout:  15 * time.Second,
	}, nil
}

// Preflight queries the API server version.
func (k *KubeClient) Preflight(ctx context.Context) error {
	if _, err := k.discovery.ServerVersion(); err != nil {
		return fmt.Errorf("the Kubernetes API is not reachable: %w", err)
	}
	return nil
}

// EnsureEnvironment looks up the namespace and creates it if not found.
func (k *KubeClient) EnsureEnvironment(ctx context.Context, namespace string) (Environment, bool, error) {
	env := Environment{Namespace: namespace}
	ns := &corev1.Namespace{}
	err := k.client.Get(ctx, client.ObjectKey{Name: namespace}, ns)
	if err == nil {
		return env, false, nil
	}
	if !apierrors.IsNotFound(err) {
		return env, false, fmt.Errorf("Namespace/%s query failed, error: %w", namespace, err)
	}

	ns = &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: namespace}}
	if err := k.client.Create(ctx, ns, client.FieldOwner(k.owner.Field)); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return env, false, nil
		}
		return env, false, fmt.Errorf("Namespace/%s create failed, error: %w", namespace, err)
	}
	return env, true, nil
}

// ApplyResource performs a server-side apply of the named objects and
// creates the objects that only have a generateName.
// Namespaced objects without a namespace are placed in the environment namespace.
func (k *KubeClient) ApplyResource(ctx context.Context, env Environment, objects []*unstructured.Unstructured, opts ApplyOptions) (*ChangeSet, error) {
	var toApply []*unstructured.Unstructured
	var toCreate []*unstructured.Unstructured

	for _, object := range objects {
		obj := object.DeepCopy()
		namespaced, err := k.isNamespaced(obj)
		if err != nil {
			return nil, fmt.Errorf("%s mapping failed, error: %w", objectutil.FmtUnstructured(obj), err)
		}
		if namespaced && obj.GetNamespace() == "" {
			obj.SetNamespace(env.Namespace)
		}
		if obj.GetName() == "" {
			toCreate = append(toCreate, obj)
		} else {
			toApply = append(toApply, obj)
		}
	}

	changeSet := NewChangeSet()
	if len(toApply) > 0 {
		applyOpts := ssa.DefaultApplyOptions()
		applyOpts.Force = opts.Force

		cs, err := k.resMgr.ApplyAll(ctx, toApply, applyOpts)
		if err != nil {
			return nil, err
		}
		for _, e := range cs.Entries {
			changeSet.Add(ChangeSetEntry{Subject: e.Subject, Action: Action(e.Action)})
		}
	}

	for _, obj := range toCreate {
		if err := k.client.Create(ctx, obj, client.FieldOwner(k.owner.Field)); err != nil {
			return nil, fmt.Errorf("%s create failed, error: %w", objectutil.FmtUnstructured(obj), err)
		}
		changeSet.Add(ChangeSetEntry{Subject: objectutil.FmtUnstructured(obj), Action: CreatedAction})
	}

	return changeSet, nil
}

// GetResourceStatus counts the running and ready pods matching the selector.
func (k *KubeClient) GetResourceStatus(ctx context.Context, env Environment, selector map[string]string) (WorkloadStatus, error) {
	ws := WorkloadStatus{Selector: labels.SelectorFromSet(selector).String()}
	if len(selector) == 0 {
		return ws, fmt.Errorf("a pod selector is required")
	}

	pods := &corev1.PodList{}
	if err := k.client.List(ctx, pods, client.InNamespace(env.Namespace), client.MatchingLabels(selector)); err != nil {
		return ws, fmt.Errorf("listing pods for '%s' failed, error: %w", ws.Selector, err)
	}

	for i := range pods.Items {
		pod := &pods.Items[i]
		if pod.GetDeletionTimestamp() != nil {
			continue
		}
		ws.Total++
		if pod.Status.Phase != corev1.PodRunning {
			continue
		}
		ws.Running++
		if isPodReady(pod) {
			ws.Ready++
		}
	}

	return ws, nil
}

func isPodReady(pod *corev1.Pod) bool {
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

// ListResources lists the objects of the given kind in the environment
// and computes their status with kstatus.
func (k *KubeClient) ListResources(ctx context.Context, env Environment, gvk schema.GroupVersionKind, selector labels.Selector) ([]Resource, error) {
	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(gvk.GroupVersion().WithKind(gvk.Kind + "List"))

	opts := []client.ListOption{client.InNamespace(env.Namespace)}
	if selector != nil && !selector.Empty() {
		opts = append(opts, client.MatchingLabelsSelector{Selector: selector})
	}

	if err := k.client.List(ctx, list, opts...); err != nil {
		if isNoMatch(err) || apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("%s: %w", gvk.Kind, ErrKindNotServed)
		}
		return nil, fmt.Errorf("listing %s failed, error: %w", gvk.Kind, err)
	}

	resources := make([]Resource, 0, len(list.Items))
	for i := range list.Items {
		item := &list.Items[i]
		res := Resource{
			Kind:      gvk.Kind,
			Namespace: item.GetNamespace(),
			Name:      item.GetName(),
			Labels:    item.GetLabels(),
			Created:   item.GetCreationTimestamp().Time,
		}

		if result, err := status.Compute(item); err != nil {
			res.Status = string(status.UnknownStatus)
			res.Message = err.Error()
		} else {
			res.Status = string(result.Status)
			res.Message = result.Message
		}

		if gvk.Kind == "Service" {
			if sel, found, err := unstructured.NestedStringMap(item.Object, "spec", "selector"); err == nil && found {
				res.Selector = sel
			}
		}

		resources = append(resources, res)
	}

	sort.Slice(resources, func(i, j int) bool {
		return resources[i].Name < resources[j].Name
	})

	return resources, nil
}

func (k *KubeClient) isNamespaced(obj *unstructured.Unstructured) (bool, error) {
	gvk := obj.GroupVersionKind()
	mapping, err := k.client.RESTMapper().RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return false, err
	}
	return mapping.Scope.Name() == meta.RESTScopeNameNamespace, nil
}

func isNoMatch(err error) bool {
	if err == nil {
		return false
	}
	var kindErr *meta.NoKindMatchError
	var resourceErr *meta.NoResourceMatchError
	return errors.As(err, &kindErr) || errors.As(err, &resourceErr) || meta.IsNoMatchError(err)
}
