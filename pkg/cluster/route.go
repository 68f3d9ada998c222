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
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// RouteGVK is the OpenShift Route kind used to expose services.
var RouteGVK = schema.GroupVersionKind{Group: "route.openshift.io", Version: "v1", Kind: "Route"}

// ExposeService creates a Route named after the service, if one doesn't exist,
// and waits for the router to assign a host to it.
func (k *KubeClient) ExposeService(ctx context.Context, env Environment, name string) (Endpoint, error) {
	endpoint := Endpoint{Service: name, Route: name}
	key := client.ObjectKey{Namespace: env.Namespace, Name: name}

	svc := &corev1.Service{}
	if err := k.client.Get(ctx, key, svc); err != nil {
		return endpoint, fmt.Errorf("Service/%s/%s query failed, error: %w", env.Namespace, name, err)
	}

	route := &unstructured.Unstructured{}
	route.SetGroupVersionKind(RouteGVK)
	err := k.client.Get(ctx, key, route)
	switch {
	case isNoMatch(err):
		return endpoint, fmt.Errorf("exposing Service/%s/%s requires the Route API: %w", env.Namespace, name, ErrUnsupported)
	case apierrors.IsNotFound(err):
		route = newRoute(svc)
		if err := k.client.Create(ctx, route, client.FieldOwner(k.owner.Field)); err != nil {
			if isNoMatch(err) {
				return endpoint, fmt.Errorf("exposing Service/%s/%s requires the Route API: %w", env.Namespace, name, ErrUnsupported)
			}
			return endpoint, fmt.Errorf("Route/%s/%s create failed, error: %w", env.Namespace, name, err)
		}
		endpoint.Created = true
	case err != nil:
		return endpoint, fmt.Errorf("Route/%s/%s query failed, error: %w", env.Namespace, name, err)
	}

	err = wait.PollImmediate(k.RouteInterval, k.RouteTimeout, func() (bool, error) {
		if err := k.client.Get(ctx, key, route); err != nil {
			return false, err
		}
		endpoint.Host = routeHost(route)
		return endpoint.Host != "", nil
	})
	if err != nil {
		return endpoint, fmt.Errorf("Route/%s/%s has no host assigned, error: %w", env.Namespace, name, err)
	}

	return endpoint, nil
}

func newRoute(svc *corev1.Service) *unstructured.Unstructured {
	route := &unstructured.Unstructured{Object: map[string]interface{}{
		"spec": map[string]interface{}{
			"to": map[string]interface{}{
				"kind":   "Service",
				"name":   svc.GetName(),
				"weight": int64(100),
			},
		},
	}}
	route.SetGroupVersionKind(RouteGVK)
	route.SetName(svc.GetName())
	route.SetNamespace(svc.GetNamespace())
	route.SetLabels(svc.GetLabels())

	if len(svc.Spec.Ports) > 0 {
		_ = unstructured.SetNestedField(route.Object, routeTargetPort(svc.Spec.Ports[0]), "spec", "port", "targetPort")
	}

	return route
}

// routeTargetPort returns the service port name, which the router resolves through the
// endpoints, or else the numeric port on the pods.
func routeTargetPort(port corev1.ServicePort) interface{} {
	switch {
	case port.Name != "":
		return port.Name
	case port.TargetPort.Type == intstr.String && port.TargetPort.StrVal != "":
		return port.TargetPort.StrVal
	case port.TargetPort.IntVal != 0:
		return int64(port.TargetPort.IntVal)
	default:
		// an unset targetPort defaults to the service port
		return int64(port.Port)
	}
}

// routeHost returns the first host admitted by a router, or spec.host.
func routeHost(route *unstructured.Unstructured) string {
	ingresses, _, _ := unstructured.NestedSlice(route.Object, "status", "ingress")
	for _, i := range ingresses {
		ingress, ok := i.(map[string]interface{})
		if !ok {
			continue
		}
		if host, ok := ingress["host"].(string); ok && host != "" {
			return host
		}
	}

	host, _, _ := unstructured.NestedString(route.Object, "spec", "host")
	return host
}
