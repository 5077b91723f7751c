// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package management

import (
	"fmt"
	"strings"
)

// ResourceID identifies a database account in Azure Resource Manager.
type ResourceID struct {
	Subscription  string
	ResourceGroup string
	Provider      string
	AccountName   string
}

// ParseResourceID parses
// /subscriptions/{sub}/resourceGroups/{group}/providers/{namespace}/databaseAccounts/{name}.
// Segment names are matched case-insensitively, as ARM does.
func ParseResourceID(id string) (ResourceID, error) {
	parts := strings.Split(strings.Trim(id, "/"), "/")
	if len(parts) != 8 {
		return ResourceID{}, fmt.Errorf("invalid resource id %q: expected 8 path segments, got %d", id, len(parts))
	}
	want := map[int]string{0: "subscriptions", 2: "resourcegroups", 4: "providers", 6: "databaseaccounts"}
	for i, name := range want {
		if strings.ToLower(parts[i]) != name {
			return ResourceID{}, fmt.Errorf("invalid resource id %q: segment %d must be %q", id, i+1, name)
		}
	}
	for _, i := range []int{1, 3, 5, 7} {
		if strings.TrimSpace(parts[i]) == "" {
			return ResourceID{}, fmt.Errorf("invalid resource id %q: empty segment", id)
		}
	}
	return ResourceID{
		Subscription:  parts[1],
		ResourceGroup: parts[3],
		Provider:      parts[5],
		AccountName:   parts[7],
	}, nil
}

// Path returns the canonical ARM path of the account.
func (r ResourceID) Path() string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/%s/databaseAccounts/%s",
		r.Subscription, r.ResourceGroup, r.Provider, r.AccountName)
}
