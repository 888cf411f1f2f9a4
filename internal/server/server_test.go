// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docswap/internal/convert"
	"github.com/pdiddy/docswap/internal/docx"
	"github.com/pdiddy/docswap/internal/ledger"
	"github.com/pdiddy/docswap/internal/pdf"
	"github.com/pdiddy/docswap/pkg/types"
)

// --- test helpers ---

type upload struct {
	name string
	data []byte
}

func docxBytes(t *testing.T, texts ...string) []byte {
	t.Helper()
	data, err := docx.Write(types.Blocks(texts...))
	require.NoError(t, err)
	return data
}

func pdfBytes(t *testing.T, texts ...string) []byte {
	t.Helper()
	data, _, err := pdf.NewWriter(types.DefaultLayout()).Write(types.Blocks(texts...))
	require.NoError(t, err)
	return data
}

func multipartBody(t *testing.T, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := mw.CreateFormFile(formField, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func testServer(t *testing.T, mutate func(*types.Config, *Deps)) http.Handler {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.Server.ScratchDir = t.TempDir()
	d, err := convert.NewDispatcher(cfg, nil)
	require.NoError(t, err)
	deps := Deps{
		Dispatcher: d,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	s, err := New(cfg, deps)
	require.NoError(t, err)
	return s.Handler()
}

func postFiles(t *testing.T, h http.Handler, header http.Header, files ...upload) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, files...)
	req := httptest.NewRequest(http.MethodPost, "/convert", body)
	req.Header.Set("Content-Type", ct)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

type fakePublisher struct {
	got []types.Artifact
	err error
}

func (f *fakePublisher) Publish(_ context.Context, batchID string, a types.Artifact) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.got = append(f.got, a)
	return "https://bucket.example/" + batchID + "/" + a.Name, nil
}

// --- tests ---

func TestNew_RequiresDispatcher(t *testing.T) {
	_, err := New(types.DefaultConfig(), Deps{})
	assert.Error(t, err)
}

func TestIndexAndHealth(t *testing.T) {
	h := testServer(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="files[]"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, types.RendererNative, health["renderer"])
}

func TestConvert_NoFiles(t *testing.T) {
	h := testServer(t, nil)

	rec := postFiles(t, h, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No files uploaded\n", rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConvert_SingleFileIsReturnedDirectly(t *testing.T) {
	h := testServer(t, nil)

	rec := postFiles(t, h, nil, upload{"Quarterly Report.docx", docxBytes(t, "Revenue up", "Costs down")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=Quarterly_Report.pdf", rec.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, rec.Header().Get(headerBatchID))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	reader, err := pdf.NewReader(types.ExtractorNative)
	require.NoError(t, err)
	got, pages, err := reader.Read(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Text, "Revenue up")
}

func TestConvert_SeveralFilesAreZipped(t *testing.T) {
	h := testServer(t, nil)

	rec := postFiles(t, h, nil,
		upload{"report.docx", docxBytes(t, "hello")},
		upload{"scan.pdf", pdfBytes(t, "page text")},
		upload{"notes.txt", []byte("ignored")},
	)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=converted_files.zip", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, []string{"report.pdf", "scan.docx"}, zipNames(t, rec.Body.Bytes()))
}

func TestConvert_NothingConvertibleYieldsEmptyArchive(t *testing.T) {
	h := testServer(t, nil)

	rec := postFiles(t, h, nil, upload{"notes.txt", []byte("x")})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Empty(t, zipNames(t, rec.Body.Bytes()))
}

func TestConvert_BatchPolicy(t *testing.T) {
	files := []upload{
		{"good.docx", docxBytes(t, "fine")},
		{"broken.pdf", []byte("not a pdf")},
	}

	t.Run("skip delivers the rest", func(t *testing.T) {
		h := testServer(t, nil)
		rec := postFiles(t, h, nil, files...)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "attachment; filename=good.pdf", rec.Header().Get("Content-Disposition"))
	})

	t.Run("all-or-nothing rejects", func(t *testing.T) {
		h := testServer(t, func(cfg *types.Config, _ *Deps) {
			cfg.Conversion.BatchPolicy = types.PolicyAllOrNothing
		})
		rec := postFiles(t, h, nil, files...)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var resp struct {
			Error    string    `json:"error"`
			BatchID  string    `json:"batch_id"`
			Failures []failure `json:"failures"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp.Error, "batch rejected")
		assert.Equal(t, rec.Header().Get(headerBatchID), resp.BatchID)
		require.Len(t, resp.Failures, 1)
		assert.Equal(t, "broken.pdf", resp.Failures[0].Name)
		assert.Equal(t, "format_error", resp.Failures[0].Reason)
	})
}

func TestConvert_UploadTooLarge(t *testing.T) {
	h := testServer(t, func(cfg *types.Config, _ *Deps) {
		cfg.Server.MaxUploadBytes = 1024
	})
	rec := postFiles(t, h, nil, upload{"big.docx", bytes.Repeat([]byte("x"), 8192)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestConvert_ScratchIsRemoved(t *testing.T) {
	base := t.TempDir()
	h := testServer(t, func(cfg *types.Config, _ *Deps) {
		cfg.Server.ScratchDir = base
	})

	rec := postFiles(t, h, nil, upload{"a.docx", docxBytes(t, "x")}, upload{"b.pdf", []byte("bad")})
	require.Equal(t, http.StatusOK, rec.Code)

	left, err := filepath.Glob(filepath.Join(base, "docswap-*"))
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestConvert_Publish(t *testing.T) {
	t.Run("location header", func(t *testing.T) {
		pub := &fakePublisher{}
		h := testServer(t, func(_ *types.Config, d *Deps) { d.Publisher = pub })

		rec := postFiles(t, h, nil, upload{"a.docx", docxBytes(t, "x")})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, pub.got, 1)
		assert.Equal(t, "a.pdf", pub.got[0].Name)
		assert.Equal(t, "https://bucket.example/"+rec.Header().Get(headerBatchID)+"/a.pdf", rec.Header().Get(headerLocation))
	})

	t.Run("failure does not fail the batch", func(t *testing.T) {
		h := testServer(t, func(_ *types.Config, d *Deps) {
			d.Publisher = &fakePublisher{err: errors.New("bucket gone")}
		})

		rec := postFiles(t, h, nil, upload{"a.docx", docxBytes(t, "x")})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get(headerLocation))
	})
}

func TestJWT(t *testing.T) {
	secret := "s3cret"
	h := testServer(t, func(cfg *types.Config, _ *Deps) { cfg.Server.JWTSecret = secret })

	sign := func(method jwt.SigningMethod, key string) string {
		tok := jwt.NewWithClaims(method, jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		s, err := tok.SignedString([]byte(key))
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + sign(jwt.SigningMethodHS256, "other"), http.StatusUnauthorized},
		{"wrong algorithm", "Bearer " + sign(jwt.SigningMethodHS512, secret), http.StatusUnauthorized},
		{"valid", "Bearer " + sign(jwt.SigningMethodHS256, secret), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.auth != "" {
				header.Set("Authorization", tt.auth)
			}
			rec := postFiles(t, h, header, upload{"a.docx", docxBytes(t, "x")})
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "upload form stays public")
}

func TestSubject(t *testing.T) {
	assert.Empty(t, Subject(context.Background()))
	ctx := context.WithValue(context.Background(), subjectKey, "user-1")
	assert.Equal(t, "user-1", Subject(ctx))
}

func TestJobs(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := testServer(t, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("records and lists", func(t *testing.T) {
		store, err := ledger.NewStore(types.LedgerConfig{Path: filepath.Join(t.TempDir(), "ledger.db")})
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		h := testServer(t, func(_ *types.Config, d *Deps) { d.Ledger = store })

		rec := postFiles(t, h, nil, upload{"a.docx", docxBytes(t, "x")}, upload{"b.pdf", []byte("bad")})
		require.Equal(t, http.StatusOK, rec.Code)
		batchID := rec.Header().Get(headerBatchID)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?batch_id="+batchID, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var entries []ledger.Entry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		assert.Len(t, entries, 2)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=failed", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		entries = nil
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "b.pdf", entries[0].Filename)
		assert.Equal(t, "format_error", entries[0].Reason)

		for _, q := range []string{"limit=abc", "limit=-1", "since=yesterday"} {
			rec = httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?"+q, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})
}
