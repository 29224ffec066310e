// Package session holds one user's working copy of a document and keeps it
// in step with the remote store.
//
// Every change is a whole-document read-modify-write: the mutation is
// applied to a copy of the snapshot, the copy is written to the store, and
// only a successful write replaces the snapshot. Changes made through one
// Session are strictly sequential.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"slidedeck/core"
	"slidedeck/deck"
	"slidedeck/export"
	"slidedeck/notice"
	"slidedeck/roles"

	"github.com/sirupsen/logrus"
)

// Mode selects how writes treat concurrent changes by other sessions.
type Mode string

const (
	// ModeRevision sends the snapshot's revision with every write. A write
	// against a newer stored revision is rejected and the session must
	// reload.
	ModeRevision Mode = "revision"
	// ModeLastWriteWins overwrites unconditionally. A concurrent write by
	// another session is silently lost.
	ModeLastWriteWins Mode = "last-write-wins"
)

const (
	MinZoom = 0.25
	MaxZoom = 4
)

const (
	msgUpdated      = "Presentation updated successfully!"
	msgUpdateFailed = "Error updating presentation."
	msgInvalid      = "Presentation data is invalid."
	msgReloadNeeded = "Presentation changed elsewhere. Reload before editing."
	msgRolesUpdated = "Roles updated successfully."
	msgRolesFailed  = "Error updating roles."
	msgNoPermission = "You do not have permission to edit this presentation."
)

// Remote is the part of the store client a session needs.
type Remote interface {
	Get(ctx context.Context, id string) (*core.Document, error)
	Replace(ctx context.Context, doc *core.Document, ifRevision int64) (*core.Document, error)
	Patch(ctx context.Context, id string, patch core.Patch, ifRevision int64) (*core.Document, error)
}

type Options struct {
	Mode   Mode
	IDs    core.IDGenerator
	Notice *notice.Notice
}

type (
	// View is what the drawing surface renders for the active slide.
	View struct {
		Elements core.Elements
		EditMode bool
		Zoom     float64
	}

	// DragEvent reports where an element was dropped.
	DragEvent struct {
		ElementIndex int
		X            float64
		Y            float64
	}
)

type Session struct {
	mu       sync.Mutex
	username string
	remote   Remote
	mode     Mode
	ids      core.IDGenerator
	notice   *notice.Notice

	doc      *core.Document
	slide    int
	editMode bool
	zoom     float64
	stale    bool
	closed   bool
}

// New starts a session for username. Nothing is loaded yet.
func New(username string, remote Remote, opts Options) (*Session, error) {
	if strings.TrimSpace(username) == "" {
		return nil, &core.ValidationError{Field: "username", Reason: "must not be empty"}
	}
	switch opts.Mode {
	case "":
		opts.Mode = ModeRevision
	case ModeRevision, ModeLastWriteWins:
	default:
		return nil, &core.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown concurrency mode %q", opts.Mode)}
	}
	if opts.IDs == nil {
		opts.IDs = core.RandomIDs{}
	}
	if opts.Notice == nil {
		opts.Notice = notice.New(notice.DefaultTTL)
	}
	return &Session{
		username: username,
		remote:   remote,
		mode:     opts.Mode,
		ids:      opts.IDs,
		notice:   opts.Notice,
		zoom:     1,
	}, nil
}

func (s *Session) Username() string { return s.username }

func (s *Session) Mode() Mode { return s.mode }

func (s *Session) Notice() *notice.Notice { return s.notice }

func (s *Session) log() *logrus.Entry {
	fields := logrus.Fields{"username": s.username}
	if s.doc != nil {
		fields["document_id"] = s.doc.ID
		fields["revision"] = s.doc.Revision
	}
	return logrus.WithFields(fields)
}

func (s *Session) checkOpen() error {
	if s.closed {
		return &core.ValidationError{Field: "session", Reason: "closed"}
	}
	return nil
}

func (s *Session) checkLoaded() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.doc == nil {
		return &core.ValidationError{Field: "document", Reason: "not loaded"}
	}
	return nil
}

// Load fetches the document and makes it the snapshot. Any failure, a
// malformed payload included, is reported as invalid presentation data
// and leaves the previous snapshot in place.
func (s *Session) Load(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.load(ctx, id)
}

func (s *Session) load(ctx context.Context, id string) error {
	doc, err := s.remote.Get(ctx, id)
	if err != nil {
		s.notice.Error(msgInvalid)
		s.log().WithField("document_id", id).WithError(err).Warn("Failed to load presentation")
		if errors.Is(err, core.ErrInvalidDocument) {
			return core.Transient("load document", err)
		}
		return core.Transient("load document", fmt.Errorf("%w: %w", core.ErrInvalidDocument, err))
	}

	if s.doc == nil || s.doc.ID != doc.ID {
		s.slide = 0
		s.editMode = false
	}
	if s.slide >= len(doc.Content.Slides) {
		s.slide = 0
	}
	if !roles.CanEdit(doc, s.username) {
		s.editMode = false
	}
	s.doc = doc
	s.stale = false
	s.log().Debug("Presentation loaded")
	return nil
}

// Reload fetches the current document again and clears the stale flag.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLoaded(); err != nil {
		return err
	}
	return s.load(ctx, s.doc.ID)
}

// Document returns a copy of the snapshot, or nil before Load.
func (s *Session) Document() *core.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	return s.doc.Clone()
}

// Stale reports whether a write was rejected because the stored document
// moved on. A stale session refuses writes until Reload.
func (s *Session) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

func (s *Session) Role() roles.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return roles.RoleNone
	}
	return roles.RoleOf(s.doc, s.username)
}

func (s *Session) ifRevision() int64 {
	if s.mode == ModeLastWriteWins {
		return 0
	}
	return s.doc.Revision
}

func (s *Session) checkWritable() error {
	if err := s.checkLoaded(); err != nil {
		return err
	}
	if s.stale {
		s.notice.Error(msgReloadNeeded)
		return core.Transient("save document", fmt.Errorf("%w: reload required", core.ErrConflict))
	}
	return nil
}

// settle records the outcome of a write.
func (s *Session) settle(written *core.Document, err error, okMsg, failMsg string) error {
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			s.stale = true
			s.notice.Error(msgReloadNeeded)
		} else {
			s.notice.Error(failMsg)
		}
		s.log().WithError(err).Warn("Write rejected, keeping previous snapshot")
		return err
	}
	s.doc = written
	s.notice.Info(okMsg)
	s.log().Debug("Write stored")
	return nil
}

// Mutate applies one content change and writes the whole document. The
// caller must be the creator or an editor.
func (s *Session) Mutate(ctx context.Context, m deck.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(ctx, m)
}

func (s *Session) mutate(ctx context.Context, m deck.Mutation) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if !roles.CanEdit(s.doc, s.username) {
		s.notice.Error(msgNoPermission)
		return &core.ForbiddenError{Username: s.username, Action: "edit this presentation"}
	}

	next := s.doc.Clone()
	if err := m(next); err != nil {
		return err
	}
	written, err := s.remote.Replace(ctx, next, s.ifRevision())
	return s.settle(written, err, msgUpdated, msgUpdateFailed)
}

// mutateSlide runs fn against the slide active when the call is made.
func (s *Session) mutateSlide(ctx context.Context, fn func(doc *core.Document, slide int)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slide := s.slide
	return s.mutate(ctx, func(doc *core.Document) error {
		fn(doc, slide)
		return nil
	})
}

func (s *Session) addElement(ctx context.Context, el core.Element) error {
	return s.mutateSlide(ctx, func(doc *core.Document, slide int) {
		deck.AddElement(doc, slide, el)
	})
}

func (s *Session) AddText(ctx context.Context) error {
	return s.addElement(ctx, deck.NewText(s.ids))
}

func (s *Session) AddRectangle(ctx context.Context) error {
	return s.addElement(ctx, deck.NewRectangle(s.ids))
}

func (s *Session) AddCircle(ctx context.Context) error {
	return s.addElement(ctx, deck.NewCircle(s.ids))
}

func (s *Session) AddImage(ctx context.Context, src string) error {
	img, err := deck.NewImage(s.ids, src)
	if err != nil {
		return err
	}
	return s.addElement(ctx, img)
}

func (s *Session) MoveElement(ctx context.Context, elementIndex int, x, y float64) error {
	return s.mutateSlide(ctx, func(doc *core.Document, slide int) {
		deck.MoveElement(doc, slide, elementIndex, x, y)
	})
}

func (s *Session) DeleteElement(ctx context.Context, elementIndex int) error {
	return s.mutateSlide(ctx, func(doc *core.Document, slide int) {
		deck.DeleteElement(doc, slide, elementIndex)
	})
}

// HandleDrag moves the dropped element of the active slide.
func (s *Session) HandleDrag(ctx context.Context, e DragEvent) error {
	return s.MoveElement(ctx, e.ElementIndex, e.X, e.Y)
}

// Promote makes a viewer an editor. It reports false, and contacts nobody,
// when username is not a viewer.
func (s *Session) Promote(ctx context.Context, username string) (bool, error) {
	return s.transition(ctx, username, roles.Promote)
}

// Demote makes an editor a viewer. It reports false, and contacts nobody,
// when username is not an editor.
func (s *Session) Demote(ctx context.Context, username string) (bool, error) {
	return s.transition(ctx, username, roles.Demote)
}

func (s *Session) transition(ctx context.Context, username string, move func(*core.Document, string) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWritable(); err != nil {
		return false, err
	}
	if !roles.CanManage(s.doc, s.username) {
		return false, &core.ForbiddenError{Username: s.username, Action: "change roles of this presentation"}
	}

	next := s.doc.Clone()
	if !move(next, username) {
		return false, nil
	}
	written, err := s.remote.Patch(ctx, next.ID, roles.ExchangePatch(next), s.ifRevision())
	if err := s.settle(written, err, msgRolesUpdated, msgRolesFailed); err != nil {
		return false, err
	}
	return true, nil
}

// SelectSlide makes index the active slide.
func (s *Session) SelectSlide(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLoaded(); err != nil {
		return err
	}
	if index < 0 || index >= len(s.doc.Content.Slides) {
		return &core.ValidationError{Field: "slide", Reason: fmt.Sprintf("index %d out of range", index)}
	}
	s.slide = index
	return nil
}

func (s *Session) ActiveSlide() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slide
}

// SetEditMode turns dragging on or off. Only the creator and editors may
// turn it on.
func (s *Session) SetEditMode(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLoaded(); err != nil {
		return err
	}
	if on && !roles.CanEdit(s.doc, s.username) {
		return &core.ForbiddenError{Username: s.username, Action: "edit this presentation"}
	}
	s.editMode = on
	return nil
}

// SetZoom sets the stage scale, clamped to [MinZoom, MaxZoom]. NaN leaves
// the scale unchanged.
func (s *Session) SetZoom(level float64) {
	if math.IsNaN(level) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoom = min(max(level, MinZoom), MaxZoom)
}

// View returns the active slide's elements with draggable set to the edit
// mode.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{Elements: core.Elements{}, EditMode: s.editMode, Zoom: s.zoom}
	if s.doc == nil || s.slide >= len(s.doc.Content.Slides) {
		return v
	}
	for _, el := range s.doc.Content.Slides[s.slide].Elements {
		v.Elements = append(v.Elements, core.WithDraggable(el, s.editMode))
	}
	return v
}

// Export writes the snapshot as PDF. It never contacts the store.
func (s *Session) Export(w io.Writer) error {
	doc := s.Document()
	if doc == nil {
		return &core.ValidationError{Field: "document", Reason: "not loaded"}
	}
	return export.WritePDF(w, doc)
}

// Close ends the session. Later calls fail.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.doc = nil
	s.notice.Stop()
}
