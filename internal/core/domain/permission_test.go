package domain

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestNewPermissionSetDeduplicatesAndDropsBlanks(t *testing.T) {
	set := NewPermissionSet("u-2", "u-1", " u-2 ", "", "  ")
	if set.Len() != 2 {
		t.Fatalf("expected 2 grantees, got %d", set.Len())
	}
	if !reflect.DeepEqual(set.IDs(), []string{"u-1", "u-2"}) {
		t.Fatalf("unexpected ids %v", set.IDs())
	}
	if set.Has("") {
		t.Fatalf("empty id must never be granted")
	}
}

func TestPermissionSetJSONIsSortedList(t *testing.T) {
	raw, err := json.Marshal(NewPermissionSet("b", "a"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(raw) != `["a","b"]` {
		t.Fatalf("unexpected json %s", raw)
	}
}

func TestDocumentCloneIsDeep(t *testing.T) {
	doc := &Document{ID: "d-1", Tags: []string{"x"}, Grants: NewPermissionSet("u-1")}
	cp := doc.Clone()
	cp.Tags[0] = "y"
	cp.Grants["u-2"] = struct{}{}
	if doc.Tags[0] != "x" || doc.Grants.Len() != 1 {
		t.Fatalf("clone shares state with original")
	}
}

func TestErrDocumentNotFoundMatchesNotFoundKind(t *testing.T) {
	err := WrapError(ErrDocumentNotFound, "get", errors.New("id=missing"))
	if !IsKind(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound kind, got %v", err)
	}
	if !IsKind(Forbidden("delete", "nope"), ErrForbidden) {
		t.Fatalf("expected ErrForbidden kind")
	}
}
