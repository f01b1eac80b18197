package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
)

func (s *Server) handleGetVenue(w http.ResponseWriter, r *http.Request) {
	s.catalogGet(w, r, "venue", func(ctx context.Context, id int64) (any, error) {
		return s.db.GetVenue(ctx, id)
	})
}

func (s *Server) handleGetPractitioner(w http.ResponseWriter, r *http.Request) {
	s.catalogGet(w, r, "practitioner", func(ctx context.Context, id int64) (any, error) {
		return s.db.GetPractitioner(ctx, id)
	})
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	s.catalogGet(w, r, "service", func(ctx context.Context, id int64) (any, error) {
		return s.db.GetService(ctx, id)
	})
}

func (s *Server) catalogGet(w http.ResponseWriter, r *http.Request, kind string, fetch func(context.Context, int64) (any, error)) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid "+kind+" id")
		return
	}

	entity, err := fetch(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "not_found", kind+" not found")
			return
		}
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}
