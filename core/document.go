package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

type (
	// Slide is an ordered page of a document.
	Slide struct {
		ID       string   `json:"id"`
		Elements Elements `json:"elements"`
	}

	Content struct {
		Slides []Slide `json:"slides"`
	}

	// Member is the record kept for a viewer or an editor. Role transitions
	// move the record between sets without touching its fields.
	Member struct {
		Username string `json:"username"`
		JoinedAt int64  `json:"joinedAt,omitempty"`
	}

	// Members maps username to member record.
	Members map[string]Member

	// Document is the whole presentation record as held by the store.
	Document struct {
		ID       string  `json:"id"`
		Title    string  `json:"title"`
		Creator  string  `json:"creator"`
		Content  Content `json:"content"`
		Viewers  Members `json:"viewers"`
		Editors  Members `json:"editors"`
		Revision int64   `json:"revision"`
	}

	// DocumentSummary is the projection shown on the landing list.
	DocumentSummary struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Creator string `json:"creator"`
	}

	// Patch is a partial update. Nil fields are left untouched.
	Patch struct {
		Title   *string  `json:"title,omitempty"`
		Content *Content `json:"content,omitempty"`
		Viewers *Members `json:"viewers,omitempty"`
		Editors *Members `json:"editors,omitempty"`
	}

	// DocumentStore defines the persistence layer of the remote store.
	DocumentStore interface {
		// Create assigns a new identifier, writes it into the record and
		// stores the record at revision 1.
		Create(ctx context.Context, doc *Document) (*Document, error)

		// FindID returns the record stored under id or ErrNotFound.
		FindID(ctx context.Context, id string) (*Document, error)

		// List returns every stored record. An empty store yields an empty slice.
		List(ctx context.Context) ([]*Document, error)

		// Replace overwrites the whole record and bumps its revision.
		// A non-zero ifRevision makes the write conditional; a mismatch
		// returns ErrConflict.
		Replace(ctx context.Context, doc *Document, ifRevision int64) (*Document, error)
	}
)

func (m Members) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]Member(m))
}

// UnmarshalJSON accepts null, an array of records or an object. Object
// entries are keyed by the record's username when it has one.
func (m *Members) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	out := Members{}

	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
	case data[0] == '[':
		var list []Member
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("%w: members: %v", ErrInvalidDocument, err)
		}
		for _, rec := range list {
			if rec.Username != "" {
				out[rec.Username] = rec
			}
		}
	default:
		var byKey map[string]Member
		if err := json.Unmarshal(data, &byKey); err != nil {
			return fmt.Errorf("%w: members: %v", ErrInvalidDocument, err)
		}
		for key, rec := range byKey {
			if rec.Username == "" {
				rec.Username = key
			}
			out[rec.Username] = rec
		}
	}

	*m = out
	return nil
}

func (m Members) clone() Members {
	out := make(Members, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Summary projects the document to its landing-list entry.
func (d *Document) Summary() DocumentSummary {
	return DocumentSummary{ID: d.ID, Title: d.Title, Creator: d.Creator}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := *d
	out.Content.Slides = make([]Slide, len(d.Content.Slides))
	for i, s := range d.Content.Slides {
		out.Content.Slides[i] = Slide{
			ID:       s.ID,
			Elements: append(make(Elements, 0, len(s.Elements)), s.Elements...),
		}
	}
	out.Viewers = d.Viewers.clone()
	out.Editors = d.Editors.clone()
	return &out
}

// Normalize replaces absent collections with empty ones.
func (d *Document) Normalize() {
	if d.Content.Slides == nil {
		d.Content.Slides = []Slide{}
	}
	for i := range d.Content.Slides {
		if d.Content.Slides[i].Elements == nil {
			d.Content.Slides[i].Elements = Elements{}
		}
	}
	if d.Viewers == nil {
		d.Viewers = Members{}
	}
	if d.Editors == nil {
		d.Editors = Members{}
	}
}

// Apply merges the non-nil fields of p into the document.
func (p Patch) Apply(d *Document) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Content != nil {
		d.Content = *p.Content
	}
	if p.Viewers != nil {
		d.Viewers = p.Viewers.clone()
	}
	if p.Editors != nil {
		d.Editors = p.Editors.clone()
	}
	d.Normalize()
}

// DecodeDocument parses a stored record. A payload without a content.slides
// array is rejected with ErrInvalidDocument.
func DecodeDocument(data []byte) (*Document, error) {
	var probe struct {
		Content *struct {
			Slides json.RawMessage `json:"slides"`
		} `json:"content"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if probe.Content == nil {
		return nil, fmt.Errorf("%w: missing content", ErrInvalidDocument)
	}
	slides := bytes.TrimSpace(probe.Content.Slides)
	if len(slides) == 0 || slides[0] != '[' {
		return nil, fmt.Errorf("%w: content.slides is not an array", ErrInvalidDocument)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	doc.Normalize()
	return &doc, nil
}

// Supersede returns the record that replaces current with next. It keeps
// current's id and creator and bumps the revision. A non-zero ifRevision
// that differs from current's revision yields ErrConflict.
func Supersede(current, next *Document, ifRevision int64) (*Document, error) {
	if ifRevision != 0 && current.Revision != ifRevision {
		return nil, fmt.Errorf("%w: expected revision %d, stored %d", ErrConflict, ifRevision, current.Revision)
	}
	stored := next.Clone()
	stored.ID = current.ID
	stored.Creator = current.Creator
	stored.Revision = current.Revision + 1
	stored.Normalize()
	return stored, nil
}
