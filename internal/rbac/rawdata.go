package rbac

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParsePermissionData interprets a role's stored permissions. Two shapes are
// accepted: a list of granted names, or an object of name → bool. A JSON
// string holding either shape is unwrapped once. Empty data grants nothing.
func ParsePermissionData(raw []byte) (map[string]bool, error) {
	return parsePermissionData(raw, true)
}

func parsePermissionData(raw []byte, unwrap bool) (map[string]bool, error) {
	granted := map[string]bool{}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return granted, nil
	}

	switch trimmed[0] {
	case '[':
		var items []interface{}
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRoleData, err)
		}
		for _, item := range items {
			if name, ok := item.(string); ok {
				granted[name] = true
			}
		}
		return granted, nil
	case '{':
		var items map[string]interface{}
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRoleData, err)
		}
		for name, v := range items {
			if b, ok := v.(bool); ok && b {
				granted[name] = true
			}
		}
		return granted, nil
	case '"':
		if !unwrap {
			break
		}
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRoleData, err)
		}
		return parsePermissionData([]byte(inner), false)
	}

	return nil, fmt.Errorf("%w: unexpected payload %.32q", ErrMalformedRoleData, trimmed)
}

// GrantedNames returns the granted permission names of a parsed payload in catalog order,
// followed by any names outside the catalog.
func GrantedNames(granted map[string]bool) []string {
	names := make([]string, 0, len(granted))
	seen := make(map[string]bool, len(granted))
	for _, p := range Catalog {
		if granted[p] {
			names = append(names, p)
			seen[p] = true
		}
	}
	for name, ok := range granted {
		if ok && !seen[name] {
			names = append(names, name)
		}
	}
	return names
}
