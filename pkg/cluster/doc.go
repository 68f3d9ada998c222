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

// Package cluster contains the typed client used to drive the target cluster.
//
// The Client performs the following actions:
// - checks that the control plane is reachable
// - ensures the target namespace exists and hands out an Environment for it
// - applies objects with server-side apply, creating the ones that only have a generateName
// - lists objects of a kind together with their kstatus
// - reports the readiness of the pods behind a label selector
// - exposes a Service outside the cluster with an OpenShift Route
package cluster
