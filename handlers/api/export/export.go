package export

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"slidedeck/core"
	deckexport "slidedeck/export"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

func loadDocument(w http.ResponseWriter, r *http.Request, store core.DocumentStore) (*core.Document, bool) {
	id := chi.URLParam(r, "id")
	doc, err := store.FindID(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Document not found"})
			return nil, false
		}
		logrus.WithField("document_id", id).WithError(err).Error("Failed to load document for export")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to load document"})
		return nil, false
	}
	return doc, true
}

// HandlePDF renders the whole document as a PDF attachment.
func HandlePDF(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := loadDocument(w, r, store)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if err := deckexport.WritePDF(&buf, doc); err != nil {
			logrus.WithField("document_id", doc.ID).WithError(err).Error("Failed to write PDF")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to export document"})
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="presentation.pdf"`)
		w.Write(buf.Bytes())
	}
}

// HandleThumbnail renders one slide, addressed by zero-based index, as PNG.
func HandleThumbnail(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Slide index must be a number"})
			return
		}
		doc, ok := loadDocument(w, r, store)
		if !ok {
			return
		}
		if index < 0 || index >= len(doc.Content.Slides) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Slide not found"})
			return
		}

		var buf bytes.Buffer
		if err := deckexport.RenderSlide(&buf, doc.Content.Slides[index]); err != nil {
			logrus.WithField("document_id", doc.ID).WithError(err).Error("Failed to render slide")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to render slide"})
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(buf.Bytes())
	}
}
