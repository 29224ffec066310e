// Package roles manages the viewer and editor sets of a document.
//
// A username is in at most one of the two sets and the creator is in
// neither. Transitions move the member record between sets unchanged.
package roles

import (
	"fmt"
	"strings"
	"time"

	"slidedeck/core"
)

type Role string

const (
	RoleNone    Role = ""
	RoleCreator Role = "creator"
	RoleViewer  Role = "viewer"
	RoleEditor  Role = "editor"
)

// RoleOf reports the role username holds in doc.
func RoleOf(doc *core.Document, username string) Role {
	switch {
	case username != "" && username == doc.Creator:
		return RoleCreator
	case hasMember(doc.Editors, username):
		return RoleEditor
	case hasMember(doc.Viewers, username):
		return RoleViewer
	default:
		return RoleNone
	}
}

// CanEdit reports whether username may change slide content.
func CanEdit(doc *core.Document, username string) bool {
	switch RoleOf(doc, username) {
	case RoleCreator, RoleEditor:
		return true
	default:
		return false
	}
}

// CanManage reports whether username may change role membership.
func CanManage(doc *core.Document, username string) bool {
	return RoleOf(doc, username) == RoleCreator
}

func hasMember(m core.Members, username string) bool {
	_, ok := m[username]
	return ok
}

// RegisterViewer records username as a viewer. The creator cannot be
// registered. An existing viewer record is overwritten; an editor is left
// as is so the user never ends up in both sets.
func RegisterViewer(doc *core.Document, username string) error {
	if strings.TrimSpace(username) == "" {
		return &core.ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if username == doc.Creator {
		return &core.ForbiddenError{Username: username, Action: "be added as a viewer of their own presentation"}
	}
	if hasMember(doc.Editors, username) {
		return nil
	}
	if doc.Viewers == nil {
		doc.Viewers = core.Members{}
	}
	doc.Viewers[username] = core.Member{Username: username, JoinedAt: time.Now().UnixMilli()}
	return nil
}

// Promote moves username from viewers to editors. It reports false and
// changes nothing when username is not a viewer.
func Promote(doc *core.Document, username string) bool {
	rec, ok := doc.Viewers[username]
	if !ok {
		return false
	}
	delete(doc.Viewers, username)
	if doc.Editors == nil {
		doc.Editors = core.Members{}
	}
	doc.Editors[username] = rec
	return true
}

// Demote moves username from editors to viewers. It reports false and
// changes nothing when username is not an editor.
func Demote(doc *core.Document, username string) bool {
	rec, ok := doc.Editors[username]
	if !ok {
		return false
	}
	delete(doc.Editors, username)
	if doc.Viewers == nil {
		doc.Viewers = core.Members{}
	}
	doc.Viewers[username] = rec
	return true
}

// ExchangePatch builds the partial update that carries both role sets.
func ExchangePatch(doc *core.Document) core.Patch {
	viewers := doc.Viewers
	editors := doc.Editors
	if viewers == nil {
		viewers = core.Members{}
	}
	if editors == nil {
		editors = core.Members{}
	}
	return core.Patch{Viewers: &viewers, Editors: &editors}
}

// Validate checks that no username is both viewer and editor and that the
// creator is in neither set.
func Validate(doc *core.Document) error {
	if hasMember(doc.Viewers, doc.Creator) || hasMember(doc.Editors, doc.Creator) {
		return &core.ValidationError{Field: "roles", Reason: fmt.Sprintf("creator %q cannot hold a role", doc.Creator)}
	}
	for username := range doc.Viewers {
		if hasMember(doc.Editors, username) {
			return &core.ValidationError{Field: "roles", Reason: fmt.Sprintf("%q is both viewer and editor", username)}
		}
	}
	return nil
}
