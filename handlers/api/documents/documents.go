package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"slidedeck/core"
	"slidedeck/deck"
	"slidedeck/events"
	"slidedeck/middleware"
	"slidedeck/roles"
	"slidedeck/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	DocumentCreateResponse struct {
		ID       string `json:"id"`
		Revision int64  `json:"revision"`
	}

	ViewerRequest struct {
		Username string `json:"username"`
	}
)

// ETag formats a revision as a strong entity tag.
func ETag(revision int64) string {
	return strconv.Quote(strconv.FormatInt(revision, 10))
}

// ParseIfMatch reads the expected revision from the If-Match header. An
// absent header or "*" yields 0, meaning unconditional.
func ParseIfMatch(r *http.Request) (int64, error) {
	v := strings.TrimSpace(r.Header.Get("If-Match"))
	if v == "" || v == "*" {
		return 0, nil
	}
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	rev, err := strconv.ParseInt(v, 10, 64)
	if err != nil || rev <= 0 {
		return 0, &core.ValidationError{Field: "If-Match", Reason: fmt.Sprintf("%q is not a revision", v)}
	}
	return rev, nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := http.StatusInternalServerError
	msg := fallback
	switch {
	case errors.Is(err, core.ErrNotFound):
		status, msg = http.StatusNotFound, "Document not found"
	case errors.Is(err, core.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, core.ErrForbidden):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrInvalidDocument):
		status, msg = http.StatusBadRequest, err.Error()
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

func writeDocument(w http.ResponseWriter, r *http.Request, status int, doc *core.Document) {
	w.Header().Set("ETag", ETag(doc.Revision))
	w.Header().Set("Cache-Control", "no-store")
	render.Status(r, status)
	render.JSON(w, r, doc)
}

func publish(ctx context.Context, pub events.Publisher, t events.Type, doc *core.Document) {
	err := pub.Publish(ctx, events.Event{
		Type:       t,
		DocumentID: doc.ID,
		Revision:   doc.Revision,
		Actor:      middleware.UsernameFrom(ctx),
		At:         time.Now().UTC(),
	})
	if err != nil {
		logrus.WithField("document_id", doc.ID).WithError(err).Warn("Failed to publish document event")
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logrus.WithError(err).Error("Failed to read request body")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
		return nil, false
	}
	defer r.Body.Close()
	return body, true
}

// HandleCreate stores a new document. The creator defaults to the caller's
// identity and a document without slides gets the single empty slide a
// new presentation starts with.
func HandleCreate(store core.DocumentStore, pub events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		var doc core.Document
		if err := json.Unmarshal(body, &doc); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", core.ErrInvalidDocument, err), "")
			return
		}
		if doc.Creator == "" {
			doc.Creator = middleware.UsernameFrom(r.Context())
		}
		fresh, err := deck.CreateDocument(doc.Title, doc.Creator, core.RandomIDs{})
		if err != nil {
			writeError(w, r, err, "")
			return
		}
		if len(doc.Content.Slides) == 0 {
			doc.Content = fresh.Content
		}
		if err := roles.Validate(&doc); err != nil {
			writeError(w, r, err, "")
			return
		}

		stored, err := store.Create(r.Context(), &doc)
		if err != nil {
			logrus.WithError(err).Error("Failed to save document")
			writeError(w, r, err, "Failed to save document")
			return
		}
		publish(r.Context(), pub, events.DocumentCreated, stored)

		w.Header().Set("ETag", ETag(stored.Revision))
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, DocumentCreateResponse{ID: stored.ID, Revision: stored.Revision})
	}
}

// HandleList returns every document. An empty store yields an empty array.
func HandleList(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := store.List(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to list documents")
			writeError(w, r, err, "Failed to list documents")
			return
		}
		if docs == nil {
			docs = []*core.Document{}
		}
		w.Header().Set("Cache-Control", "no-store")
		render.JSON(w, r, docs)
	}
}

// HandleGet returns one document. The cachebust query parameter clients
// add is ignored.
func HandleGet(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		doc, err := store.FindID(r.Context(), id)
		if err != nil {
			writeError(w, r, err, "Failed to load document")
			return
		}
		writeDocument(w, r, http.StatusOK, doc)
	}
}

// HandleReplace overwrites the whole document. With If-Match the write is
// conditional on the stored revision.
func HandleReplace(store core.DocumentStore, pub events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		log := logrus.WithField("document_id", id)

		ifRevision, err := ParseIfMatch(r)
		if err != nil {
			writeError(w, r, err, "")
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		next, err := core.DecodeDocument(body)
		if err != nil {
			writeError(w, r, err, "")
			return
		}
		if strings.TrimSpace(next.Title) == "" {
			writeError(w, r, &core.ValidationError{Field: "title", Reason: "must not be empty"}, "")
			return
		}

		stored, err := stores.Update(r.Context(), store, id, ifRevision, func(current *core.Document) error {
			revision, creator := current.Revision, current.Creator
			*current = *next
			current.ID = id
			current.Creator = creator
			current.Revision = revision
			return roles.Validate(current)
		})
		if err != nil {
			log.WithError(err).Warn("Failed to replace document")
			writeError(w, r, err, "Failed to save document")
			return
		}
		publish(r.Context(), pub, events.DocumentReplaced, stored)
		writeDocument(w, r, http.StatusOK, stored)
	}
}

// HandlePatch merges the fields present in the body into the stored
// document.
func HandlePatch(store core.DocumentStore, pub events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		log := logrus.WithField("document_id", id)

		ifRevision, err := ParseIfMatch(r)
		if err != nil {
			writeError(w, r, err, "")
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		var patch core.Patch
		if err := json.Unmarshal(body, &patch); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", core.ErrInvalidDocument, err), "")
			return
		}
		if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
			writeError(w, r, &core.ValidationError{Field: "title", Reason: "must not be empty"}, "")
			return
		}

		stored, err := stores.Update(r.Context(), store, id, ifRevision, func(current *core.Document) error {
			patch.Apply(current)
			return roles.Validate(current)
		})
		if err != nil {
			log.WithError(err).Warn("Failed to patch document")
			writeError(w, r, err, "Failed to save document")
			return
		}
		publish(r.Context(), pub, events.DocumentPatched, stored)
		writeDocument(w, r, http.StatusOK, stored)
	}
}

// HandleRegisterViewer adds the named user, or the caller, to the viewers
// of a document. The creator is refused.
func HandleRegisterViewer(store core.DocumentStore, pub events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		log := logrus.WithField("document_id", id)

		body, ok := readBody(w, r)
		if !ok {
			return
		}
		var req ViewerRequest
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, r, &core.ValidationError{Field: "body", Reason: err.Error()}, "")
				return
			}
		}
		if req.Username == "" {
			req.Username = middleware.UsernameFrom(r.Context())
		}

		stored, err := stores.Update(r.Context(), store, id, 0, func(current *core.Document) error {
			return roles.RegisterViewer(current, req.Username)
		})
		if err != nil {
			log.WithField("username", req.Username).WithError(err).Warn("Failed to register viewer")
			writeError(w, r, err, "Failed to register viewer")
			return
		}
		publish(r.Context(), pub, events.ViewerRegistered, stored)
		writeDocument(w, r, http.StatusOK, stored)
	}
}
