// Package discovery lists documents, creates them, and registers the
// current user as a viewer when a document is opened.
package discovery

import (
	"context"
	"errors"
	"strings"
	"sync"

	"slidedeck/client"
	"slidedeck/core"
	"slidedeck/deck"
	"slidedeck/notice"

	"github.com/sirupsen/logrus"
)

const (
	msgTitleRequired   = "Please enter a title."
	msgCreated         = "Presentation created successfully."
	msgCreateFailed    = "Error creating presentation."
	msgListFailed      = "Error fetching presentations."
	msgCreatorViewer   = "The creator cannot be added as a viewer."
	msgViewerAdded     = "Viewer registered successfully."
	msgViewerAddFailed = "Error registering viewer."
)

// Remote is the part of the store client discovery needs.
type Remote interface {
	List(ctx context.Context) ([]*core.Document, error)
	Create(ctx context.Context, doc *core.Document) (client.Created, error)
	AddViewer(ctx context.Context, id, username string) (*core.Document, error)
}

type Service struct {
	remote Remote
	ids    core.IDGenerator
	notice *notice.Notice

	mu     sync.Mutex
	listed map[string]core.DocumentSummary
}

func New(remote Remote, ids core.IDGenerator, n *notice.Notice) *Service {
	if ids == nil {
		ids = core.RandomIDs{}
	}
	if n == nil {
		n = notice.New(notice.DefaultTTL)
	}
	return &Service{remote: remote, ids: ids, notice: n, listed: map[string]core.DocumentSummary{}}
}

func (s *Service) Notice() *notice.Notice { return s.notice }

// List returns a summary of every document. On failure it returns an empty
// list together with the error.
func (s *Service) List(ctx context.Context) ([]core.DocumentSummary, error) {
	docs, err := s.remote.List(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Failed to list presentations")
		s.notice.Error(msgListFailed)
		return []core.DocumentSummary{}, core.Transient("list documents", err)
	}

	summaries := make([]core.DocumentSummary, 0, len(docs))
	listed := make(map[string]core.DocumentSummary, len(docs))
	for _, doc := range docs {
		summary := doc.Summary()
		summaries = append(summaries, summary)
		listed[summary.ID] = summary
	}

	s.mu.Lock()
	s.listed = listed
	s.mu.Unlock()
	return summaries, nil
}

// Create builds a new document and stores it in one call. The returned id
// is the one the store assigned.
func (s *Service) Create(ctx context.Context, title, creator string) (string, error) {
	doc, err := deck.CreateDocument(title, creator, s.ids)
	if err != nil {
		if strings.TrimSpace(title) == "" {
			s.notice.Error(msgTitleRequired)
		}
		return "", err
	}

	created, err := s.remote.Create(ctx, doc)
	if err != nil {
		logrus.WithField("title", title).WithError(err).Warn("Failed to create presentation")
		s.notice.Error(msgCreateFailed)
		return "", core.Transient("create document", err)
	}
	logrus.WithFields(logrus.Fields{"document_id": created.ID, "creator": creator}).Info("Presentation created")
	s.notice.Info(msgCreated)
	return created.ID, nil
}

// View registers username as a viewer of the document before it is opened.
// The creator of a listed document is refused without contacting the
// store; for a document not seen by List the store refuses instead.
func (s *Service) View(ctx context.Context, id, username string) error {
	if strings.TrimSpace(username) == "" {
		return &core.ValidationError{Field: "username", Reason: "must not be empty"}
	}

	s.mu.Lock()
	summary, known := s.listed[id]
	s.mu.Unlock()
	if known && summary.Creator == username {
		s.notice.Error(msgCreatorViewer)
		return &core.ForbiddenError{Username: username, Action: "be added as a viewer of their own presentation"}
	}

	log := logrus.WithFields(logrus.Fields{"document_id": id, "username": username})
	if _, err := s.remote.AddViewer(ctx, id, username); err != nil {
		log.WithError(err).Warn("Failed to register viewer")
		if errors.Is(err, core.ErrForbidden) {
			s.notice.Error(msgCreatorViewer)
			return err
		}
		s.notice.Error(msgViewerAddFailed)
		return core.Transient("register viewer", err)
	}
	log.Debug("Viewer registered")
	s.notice.Info(msgViewerAdded)
	return nil
}
