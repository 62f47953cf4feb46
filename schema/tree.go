package schema

import (
	"net/url"
	"strings"

	"github.com/erraggy/oasrouter/contract"
)

// RewriteRefs returns a deep copy of tree where every $ref into
// "#/components/schemas/" is replaced by the registry-local key of the target
// (the schema name, with any deeper pointer kept as a fragment):
//
//	"#/components/schemas/Pet"                 -> "Pet"
//	"#/components/schemas/Pet/properties/name" -> "Pet#/properties/name"
//
// Other refs are copied unchanged. The second return value lists the schema
// names referenced, in depth-first order.
func RewriteRefs(tree map[string]any) (map[string]any, []string) {
	var names []string
	out := rewriteNode(tree, &names).(map[string]any)
	return out, names
}

func rewriteNode(node any, names *[]string) any {
	switch typed := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			if key == "$ref" {
				if ref, ok := value.(string); ok {
					if local, name, ok := localRef(ref); ok {
						*names = append(*names, name)
						out[key] = local
						continue
					}
				}
			}
			out[key] = rewriteNode(value, names)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, value := range typed {
			out[i] = rewriteNode(value, names)
		}
		return out
	default:
		return node
	}
}

// localRef converts a component schema ref to its registry-local key.
func localRef(ref string) (local, name string, ok bool) {
	if !strings.HasPrefix(ref, contract.SchemaRefPrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(ref, contract.SchemaRefPrefix)
	name, pointer, _ := strings.Cut(rest, "/")
	if name == "" {
		return "", "", false
	}
	name = unescapePointerToken(name)
	local = url.PathEscape(name)
	if pointer != "" {
		local += "#/" + pointer
	}
	return local, name, true
}

// unescapePointerToken reverses JSON pointer escaping (RFC 6901).
func unescapePointerToken(token string) string {
	return strings.ReplaceAll(strings.ReplaceAll(token, "~1", "/"), "~0", "~")
}

// PatchBinary marks every node shaped {type: string, format: binary} as also
// accepting an uploaded file object, so multipart uploads validate while plain
// strings still do. Arrays of binary strings are handled through their items.
// tree is modified in place.
func PatchBinary(tree map[string]any) {
	patchNode(tree)
}

func patchNode(node any) {
	switch typed := node.(type) {
	case map[string]any:
		if format, _ := typed["format"].(string); format == "binary" {
			switch t := typed["type"].(type) {
			case string:
				if t == "string" {
					typed["type"] = []any{"string", "object"}
				}
			case []any:
				if containsString(t, "string") && !containsString(t, "object") {
					typed["type"] = append(append([]any{}, t...), "object")
				}
			}
		}
		for _, value := range typed {
			patchNode(value)
		}
	case []any:
		for _, value := range typed {
			patchNode(value)
		}
	}
}

// Normalize rewrites OAS 3.0 schema dialect into JSON Schema 2020-12 in place:
// "nullable: true" adds "null" to the type, and boolean exclusiveMinimum /
// exclusiveMaximum become their numeric forms.
func Normalize(tree map[string]any) {
	normalizeNode(tree)
}

func normalizeNode(node any) {
	switch typed := node.(type) {
	case map[string]any:
		if nullable, _ := typed["nullable"].(bool); nullable {
			switch t := typed["type"].(type) {
			case string:
				typed["type"] = []any{t, "null"}
			case []any:
				if !containsString(t, "null") {
					typed["type"] = append(append([]any{}, t...), "null")
				}
			}
			delete(typed, "nullable")
		}
		normalizeExclusive(typed, "exclusiveMinimum", "minimum")
		normalizeExclusive(typed, "exclusiveMaximum", "maximum")
		for _, value := range typed {
			normalizeNode(value)
		}
	case []any:
		for _, value := range typed {
			normalizeNode(value)
		}
	}
}

func normalizeExclusive(node map[string]any, exclusiveKey, boundKey string) {
	exclusive, ok := node[exclusiveKey].(bool)
	if !ok {
		return
	}
	delete(node, exclusiveKey)
	if !exclusive {
		return
	}
	if bound, ok := node[boundKey]; ok {
		node[exclusiveKey] = bound
		delete(node, boundKey)
	}
}

func containsString(values []any, want string) bool {
	for _, v := range values {
		if s, ok := v.(string); ok && s == want {
			return true
		}
	}
	return false
}

// cloneTree deep-copies a JSON tree.
func cloneTree(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneTree(typed)
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = cloneValue(v)
		}
		return out
	default:
		return value
	}
}

// schemaType extracts the type from a schema tree, preferring the first
// non-null entry of a type array.
func schemaType(tree map[string]any) string {
	switch t := tree["type"].(type) {
	case string:
		return t
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s != "null" {
				return s
			}
		}
	}
	return ""
}
