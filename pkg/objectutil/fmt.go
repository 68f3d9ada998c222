/*
Copyright 2021 Stefan Prodan
Copyright 2021 The Flux authors

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

package objectutil

import (
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/cli-utils/pkg/object"
)

const fmtSeparator = "/"

// FmtObjMetadata returns the object ID in the format <kind>/<namespace>/<name>.
func FmtObjMetadata(obj object.ObjMetadata) string {
	return FmtKindName(obj.GroupKind.Kind, obj.Namespace, obj.Name)
}

// FmtUnstructured returns the object ID in the format <kind>/<namespace>/<name>.
// Objects that only carry a generateName are printed as <kind>/<namespace>/<generateName>*.
func FmtUnstructured(obj *unstructured.Unstructured) string {
	if obj.GetName() == "" && obj.GetGenerateName() != "" {
		return FmtKindName(obj.GetKind(), obj.GetNamespace(), obj.GetGenerateName()+"*")
	}
	return FmtObjMetadata(object.UnstructuredToObjMetadata(obj))
}

// FmtKindName joins the kind, the optional namespace and the name.
func FmtKindName(kind, namespace, name string) string {
	var builder strings.Builder
	builder.WriteString(kind + fmtSeparator)
	if namespace != "" {
		builder.WriteString(namespace + fmtSeparator)
	}
	builder.WriteString(name)
	return builder.String()
}
