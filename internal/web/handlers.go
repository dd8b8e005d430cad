package web

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mosaicly/catalog/internal/importer"
	"github.com/mosaicly/catalog/internal/logging"
)

// handleImport runs one import batch synchronously and returns the report.
//
// The payload is the raw delimited text, sent either as the request body
// (text/plain, text/csv) or as a multipart "file" field. Flags come from
// query or form values: skipDuplicates, updateDuplicates, augment.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	kind, ok := importer.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		s.respondError(w, r, errors.New("unknown import kind"), http.StatusBadRequest)
		return
	}

	payload, err := readPayload(r, s.cfg.Import.MaxPayloadSize)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	opts := importer.RunOptions{
		SkipDuplicates:   boolParam(r, "skipDuplicates"),
		UpdateDuplicates: boolParam(r, "updateDuplicates"),
		Augment:          boolParam(r, "augment"),
	}

	log := logging.WithFields(r.Context(), "kind", string(kind), "bytes", len(payload))
	log.Info("import requested")

	report, err := s.importer.Run(r.Context(), kind, payload, opts)
	if err != nil {
		// Whole-batch structural failure: no rows were processed.
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	fi := &finishedImport{
		ID:         uuid.New().String(),
		Kind:       string(kind),
		FinishedAt: time.Now().UTC(),
		Report:     report,
	}
	s.remember(fi)

	respondJSON(w, http.StatusOK, fi)
}

// handleListImports returns the retained reports, newest first.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.recent())
}

// handleGetImport returns one retained report by ID.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	fi, ok := s.lookup(chi.URLParam(r, "importID"))
	if !ok {
		s.respondError(w, r, errors.New("import not found"), http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, fi)
}

// handleHealth reports liveness, including database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  "database unreachable",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readPayload extracts the delimited text from either a multipart file
// field or the raw request body, enforcing the size cap.
func readPayload(r *http.Request, maxSize int64) ([]byte, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxSize); err != nil {
			return nil, errors.New("invalid multipart form")
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("multipart form is missing the \"file\" field")
		}
		defer file.Close()
		return readAll(file, maxSize)
	}

	return readAll(r.Body, maxSize)
}

func readAll(r io.Reader, maxSize int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, errors.New("failed to read payload")
	}
	if int64(len(data)) > maxSize {
		return nil, errors.New("payload exceeds the size limit")
	}
	if len(data) == 0 {
		return nil, errors.New("empty payload")
	}
	return data, nil
}

// boolParam reads a boolean flag from query or form values; absent or
// unparseable means false.
func boolParam(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		v = r.FormValue(name)
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// respondJSON writes v as a JSON response.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
