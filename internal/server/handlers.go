// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/docswap/internal/bundle"
	"github.com/pdiddy/docswap/internal/convert"
	"github.com/pdiddy/docswap/internal/ledger"
	"github.com/pdiddy/docswap/internal/scratch"
	"github.com/pdiddy/docswap/pkg/types"
)

const (
	formField = "files[]"

	headerBatchID  = "X-Batch-ID"
	headerLocation = "X-Artifact-Location"

	// multipartMemory is how much of a form is held in memory before
	// parts spill to disk.
	multipartMemory = 32 << 20
)

//go:embed static/index.html
var indexHTML []byte

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	renderer := types.RendererNative
	if r := s.deps.Dispatcher.Renderer; r != nil {
		renderer = r.Name()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"renderer": renderer,
		"ledger":   s.deps.Ledger != nil,
	})
}

// failure is one failed job in a rejected-batch response.
type failure struct {
	Name    string `json:"name"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.cfg.Server.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "No files uploaded", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[formField]
	if len(headers) == 0 {
		http.Error(w, "No files uploaded", http.StatusBadRequest)
		return
	}

	batchID := uuid.NewString()
	logger := s.deps.Logger.With("batch_id", batchID)

	dir, err := scratch.New(s.cfg.Server.ScratchDir)
	if err != nil {
		logger.Error("allocating scratch dir", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := dir.Close(); err != nil {
			logger.Warn("removing scratch dir", "error", err)
		}
	}()

	inputs, err := saveUploads(dir, headers)
	if err != nil {
		logger.Error("saving uploads", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	opts := convert.Options{
		Policy:      s.cfg.Conversion.BatchPolicy,
		Concurrency: s.cfg.Conversion.Concurrency,
		BatchID:     batchID,
		OnJob:       s.jobObserver(r, logger),
	}
	result := convert.RunBatch(ctx, s.deps.Dispatcher, inputs, opts, io.Discard)
	logger.Info("batch finished",
		"converted", result.Converted,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"empty", result.Empty,
	)
	w.Header().Set(headerBatchID, batchID)

	if err := result.Err(); err != nil {
		resp := struct {
			Error    string    `json:"error"`
			BatchID  string    `json:"batch_id"`
			Failures []failure `json:"failures"`
		}{Error: err.Error(), BatchID: batchID}
		for _, j := range result.Jobs {
			if j.State == types.JobFailed {
				resp.Failures = append(resp.Failures, failure{Name: j.Input.Name, Reason: j.Reason, Message: j.Message})
			}
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	artifact, err := bundle.Bundle(result.Delivered())
	if err != nil {
		logger.Error("bundling results", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if s.deps.Publisher != nil && len(artifact.Data) > 0 {
		url, err := s.deps.Publisher.Publish(ctx, batchID, artifact)
		if err != nil {
			logger.Warn("publishing artifact", "name", artifact.Name, "error", err)
		} else {
			w.Header().Set(headerLocation, url)
		}
	}

	w.Header().Set("Content-Type", artifact.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(artifact.Data)
}

// saveUploads stores every named part in dir and reads it back under its
// sanitized name. Parts without a filename are ignored.
func saveUploads(dir *scratch.Dir, headers []*multipart.FileHeader) ([]convert.Input, error) {
	var inputs []convert.Input
	for _, fh := range headers {
		if fh.Filename == "" {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("opening part %s: %w", fh.Filename, err)
		}
		stored, err := dir.Save(fh.Filename, f)
		f.Close()
		if err != nil {
			return nil, err
		}
		data, err := dir.ReadFile(stored)
		if err != nil {
			return nil, fmt.Errorf("reading back %s: %w", stored, err)
		}
		inputs = append(inputs, convert.Input{Name: stored, Data: data})
	}
	return inputs, nil
}

// jobObserver logs each finished job and records it in the ledger when
// one is configured.
func (s *Server) jobObserver(r *http.Request, logger *slog.Logger) func(string, *types.ConversionJob) {
	var record func(string, *types.ConversionJob)
	if s.deps.Ledger != nil {
		record = s.deps.Ledger.Recorder(r.Context(), s.deps.Logger)
	}
	subject := Subject(r.Context())
	return func(batchID string, job *types.ConversionJob) {
		if job.State == types.JobDone {
			logger.Info("job converted", "job_id", job.ID, "input", job.Input.Name,
				"output", job.Output.Name, "pages", job.Pages, "empty", job.Empty, "subject", subject)
		} else {
			logger.Warn("job failed", "job_id", job.ID, "input", job.Input.Name,
				"reason", job.Reason, "error", job.Message, "subject", subject)
		}
		if record != nil {
			record(batchID, job)
		}
	}
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ledger == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ledger disabled"})
		return
	}

	q := r.URL.Query()
	opts := ledger.QueryOptions{
		Status:  types.JobState(q.Get("status")),
		BatchID: q.Get("batch_id"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		opts.MaxResults = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC 3339"})
			return
		}
		opts.Since = t
	}

	entries, err := s.deps.Ledger.List(r.Context(), opts)
	if err != nil {
		s.deps.Logger.Error("listing ledger", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
