package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mytodos/internal/store"
)

type queryResponse struct {
	Documents []store.Document `json:"documents"`
}

type addResponse struct {
	ID string `json:"id"`
}

// collectionPath rebuilds the collection path from the URL parameters.
func collectionPath(r *http.Request) string {
	return "users/" + chi.URLParam(r, "uid") + "/" + chi.URLParam(r, "collection")
}

// QueryDocuments lists a collection, optionally ordered by ?orderBy=&direction=.
func (h *Handlers) QueryDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	order := store.Order{Field: r.URL.Query().Get("orderBy")}
	switch r.URL.Query().Get("direction") {
	case "", "asc":
	case "desc":
		order.Descending = true
	default:
		respondError(w, http.StatusBadRequest, "direction must be 'asc' or 'desc'")
		return
	}

	docs, err := h.docs.Query(ctx, collectionPath(r), order)
	if err != nil {
		if errors.Is(err, store.ErrInvalidPath) || errors.Is(err, store.ErrInvalidField) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondServerError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, queryResponse{Documents: docs})
}

// AddDocument inserts the JSON object in the body as a new document.
func (h *Handlers) AddDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var fields store.Fields
	if err := decodeJSON(w, r, &fields); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	id, err := h.docs.Add(ctx, collectionPath(r), fields)
	if err != nil {
		if errors.Is(err, store.ErrInvalidPath) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondServerError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, addResponse{ID: id})
}

// UpdateDocument merges the JSON object in the body into a document.
func (h *Handlers) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var fields store.Fields
	if err := decodeJSON(w, r, &fields); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	err := h.docs.Update(ctx, collectionPath(r), chi.URLParam(r, "docID"), fields)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "document not found")
			return
		}
		if errors.Is(err, store.ErrInvalidPath) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondServerError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteDocument removes a document. Missing documents are not an error.
func (h *Handlers) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.docs.Delete(ctx, collectionPath(r), chi.URLParam(r, "docID")); err != nil {
		if errors.Is(err, store.ErrInvalidPath) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondServerError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
