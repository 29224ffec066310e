package core

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestDecodeDocument_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"Not JSON", `not json`},
		{"Missing content", `{"id":"a","title":"t"}`},
		{"Missing slides", `{"id":"a","content":{}}`},
		{"Slides not an array", `{"id":"a","content":{"slides":{"0":{}}}}`},
		{"Null slides", `{"id":"a","content":{"slides":null}}`},
		{"Unknown element", `{"id":"a","content":{"slides":[{"id":"s","elements":[{"type":"star"}]}]}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeDocument([]byte(tc.data))
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("got %v, want %v", err, ErrInvalidDocument)
			}
		})
	}
}

func TestDecodeDocument_NormalizesMissingCollections(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"id":"a","title":"t","creator":"bob","content":{"slides":[{"id":"s1"}]},"viewers":null}`))
	if err != nil {
		t.Fatalf("DecodeDocument() failed: %v", err)
	}
	if doc.Content.Slides[0].Elements == nil {
		t.Error("missing elements not normalized")
	}
	if doc.Viewers == nil || doc.Editors == nil {
		t.Error("missing role sets not normalized")
	}
}

func TestMembersUnmarshal(t *testing.T) {
	testCases := []struct {
		name string
		data string
		want Members
	}{
		{"Null", `null`, Members{}},
		{"Empty array", `[]`, Members{}},
		{"Array", `[{"username":"alice","joinedAt":5}]`, Members{"alice": {Username: "alice", JoinedAt: 5}}},
		{"Keyed by username", `{"alice":{"username":"alice"}}`, Members{"alice": {Username: "alice"}}},
		{"Keyed by push id", `{"-Nx1":{"username":"carol","joinedAt":7}}`, Members{"carol": {Username: "carol", JoinedAt: 7}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got Members
			if err := json.Unmarshal([]byte(tc.data), &got); err != nil {
				t.Fatalf("Unmarshal() failed: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	doc := &Document{
		ID:      "a",
		Content: Content{Slides: []Slide{{ID: "s", Elements: Elements{Text{Text: "x"}}}}},
		Viewers: Members{"v": {Username: "v"}},
		Editors: Members{},
	}
	c := doc.Clone()
	c.Content.Slides[0].Elements[0] = Text{Text: "changed"}
	c.Viewers["w"] = Member{Username: "w"}

	if doc.Content.Slides[0].Elements[0].(Text).Text != "x" {
		t.Error("clone shares elements with the original")
	}
	if _, ok := doc.Viewers["w"]; ok {
		t.Error("clone shares viewers with the original")
	}
}

func TestSupersede(t *testing.T) {
	current := &Document{ID: "a", Creator: "bob", Title: "old", Revision: 3}
	next := &Document{ID: "other", Creator: "mallory", Title: "new"}

	got, err := Supersede(current, next, 3)
	if err != nil {
		t.Fatalf("Supersede() failed: %v", err)
	}
	if got.ID != "a" || got.Creator != "bob" || got.Title != "new" || got.Revision != 4 {
		t.Errorf("got %+v", got)
	}

	if _, err := Supersede(current, next, 2); !errors.Is(err, ErrConflict) {
		t.Errorf("got %v, want %v", err, ErrConflict)
	}
	if _, err := Supersede(current, next, 0); err != nil {
		t.Errorf("unconditional Supersede() failed: %v", err)
	}
}

func TestPatchApply(t *testing.T) {
	title := "renamed"
	editors := Members{"alice": {Username: "alice"}}
	doc := &Document{Title: "t", Viewers: Members{"alice": {Username: "alice"}}}

	Patch{Title: &title, Viewers: &Members{}, Editors: &editors}.Apply(doc)

	if doc.Title != "renamed" || len(doc.Viewers) != 0 || len(doc.Editors) != 1 {
		t.Errorf("got %+v", doc)
	}
	if doc.Content.Slides == nil {
		t.Error("Apply did not normalize the document")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	var err error = &ForbiddenError{Username: "bob", Action: "view"}
	if !errors.Is(err, ErrForbidden) || !errors.Is(err, ErrValidation) {
		t.Errorf("ForbiddenError must match both ErrForbidden and ErrValidation")
	}

	err = Transient("load", ErrConflict)
	if !errors.Is(err, ErrTransient) || !errors.Is(err, ErrConflict) {
		t.Errorf("TransientError must match ErrTransient and its cause")
	}
	if Transient("again", err) != err {
		t.Error("Transient wrapped a TransientError twice")
	}
	if Transient("none", nil) != nil {
		t.Error("Transient(nil) must be nil")
	}
}
