package domain

import (
	"encoding/json"
	"sort"
	"strings"
)

// PermissionSet holds the user ids explicitly granted access to a
// confidential document. Grants are unique per user.
type PermissionSet map[string]struct{}

// NewPermissionSet deduplicates ids and drops blanks.
func NewPermissionSet(userIDs ...string) PermissionSet {
	set := make(PermissionSet, len(userIDs))
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

func (s PermissionSet) Has(userID string) bool {
	if userID == "" {
		return false
	}
	_, ok := s[userID]
	return ok
}

func (s PermissionSet) Len() int {
	return len(s)
}

// IDs returns the grantees in a stable order.
func (s PermissionSet) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewPermissionSet(ids...)
	return nil
}
