package endpoint

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/remotezip/remotezip/core"
	"github.com/remotezip/remotezip/internal/config"
	"github.com/remotezip/remotezip/internal/engine"
	"github.com/remotezip/remotezip/internal/extractor"
	"github.com/remotezip/remotezip/internal/httpx"
	"github.com/remotezip/remotezip/internal/logger"
	"github.com/remotezip/remotezip/internal/mediagateway"
	"github.com/remotezip/remotezip/internal/server"
	"github.com/remotezip/remotezip/internal/zipdir"
)

var log = logger.Scoped("endpoint/archive")

// ArchiveAPI serves the ArchiveHandle lifecycle over HTTP (SPEC_FULL.md §6):
// opening an archive, listing/extracting entries, streaming media ranges,
// and building selection ZIPs. Grounded in the teacher's endpoint-package
// shape (one struct per subsystem, AddXEndpoints(mux) registering routes),
// reconstructed for this engine's own resources since the teacher's own
// store/stream endpoints address debrid/usenet resources this engine
// doesn't have.
type ArchiveAPI struct {
	policy *config.Policy
	eng    *engine.Engine
	reg    *engine.Registry
}

// NewArchiveAPI builds an ArchiveAPI, with eng responsible for all probing,
// parsing and extraction and reg holding opened handles between requests.
func NewArchiveAPI(policy *config.Policy, eng *engine.Engine, reg *engine.Registry) *ArchiveAPI {
	return &ArchiveAPI{policy: policy, eng: eng, reg: reg}
}

// AddEndpoints registers this API's routes on mux.
func (a *ArchiveAPI) AddEndpoints(mux *http.ServeMux) {
	withCors := httpx.Middleware(httpx.EnableCORS(a.policy.AllowedOrigins))
	mux.HandleFunc("/v0/archive", withCors(a.handleOpen))
	mux.HandleFunc("/v0/archive/{id}/entries/{path...}", withCors(a.handleEntry))
	mux.HandleFunc("/v0/archive/{id}/media/{path...}", withCors(a.handleMedia))
	mux.HandleFunc("/v0/archive/{id}/zip", withCors(a.handleZip))
}

type entryView struct {
	Path             string `json:"path"`
	Name             string `json:"name"`
	IsDirectory      bool   `json:"is_directory"`
	CompressedSize   uint64 `json:"compressed_size"`
	UncompressedSize uint64 `json:"uncompressed_size"`
	Method           string `json:"compression_method"`
	Category         string `json:"category,omitempty"`
}

func toEntryView(e zipdir.Entry) entryView {
	v := entryView{
		Path:             e.Path,
		Name:             e.Name,
		IsDirectory:      e.IsDirectory,
		CompressedSize:   e.CompressedSize,
		UncompressedSize: e.UncompressedSize,
	}
	switch e.CompressionMethod {
	case zipdir.MethodStored:
		v.Method = "stored"
	case zipdir.MethodDeflate:
		v.Method = "deflate"
	}
	if !e.IsDirectory {
		v.Category = string(extractor.Classify(e.Name))
	}
	return v
}

type openResponse struct {
	Id        string      `json:"id"`
	ETag      string      `json:"etag"`
	TotalSize int64       `json:"total_size"`
	IsProxied bool        `json:"is_proxied"`
	Entries   []entryView `json:"entries"`
	Warnings  []string    `json:"warnings,omitempty"`
}

// handleOpen implements POST /v0/archive: builds an ArchiveHandle from a
// "url" form value, or from an uploaded buffer in the request body when
// Content-Type isn't a form, per spec.md §4.1's two ByteSource origins.
func (a *ArchiveAPI) handleOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		server.SendError(w, r, core.NewError(core.ErrorCodeMethodNotAllowed, "method not allowed"))
		return
	}

	ct := r.Header.Get("Content-Type")
	var handle *engine.ArchiveHandle
	var err error

	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data") {
		var perr error
		if strings.HasPrefix(ct, "multipart/form-data") {
			perr = r.ParseMultipartForm(32 << 20)
		} else {
			perr = r.ParseForm()
		}
		if perr != nil {
			server.SendError(w, r, core.NewError(core.ErrorCodeBadRequest, "failed to parse form"))
			return
		}
		url := r.Form.Get("url")
		if url == "" {
			server.SendError(w, r, core.NewError(core.ErrorCodeBadRequest, "missing url"))
			return
		}
		handle, err = a.eng.OpenURL(r.Context(), url)
	} else {
		data, rerr := io.ReadAll(io.LimitReader(r.Body, a.policy.ProxyMaxResponseSize+1))
		if rerr != nil {
			server.SendError(w, r, core.NewError(core.ErrorCodeIo, "failed to read request body"))
			return
		}
		if int64(len(data)) > a.policy.ProxyMaxResponseSize {
			server.SendError(w, r, core.NewError(core.ErrorCodeEntryTooLarge, "uploaded archive exceeds size limit"))
			return
		}
		handle, err = a.eng.OpenBuffer(r.Context(), data)
	}
	if err != nil {
		server.SendError(w, r, err)
		return
	}

	id := a.reg.Put(handle)
	views := make([]entryView, 0, len(handle.Entries))
	for _, e := range handle.Entries {
		views = append(views, toEntryView(e))
	}
	var warnings []string
	for _, wn := range handle.Warnings {
		warnings = append(warnings, wn.Path+": "+wn.Err.Error())
	}

	server.SendResponse(w, r, http.StatusOK, openResponse{
		Id:        id,
		ETag:      handle.ETag,
		TotalSize: handle.TotalSize,
		IsProxied: handle.IsProxied,
		Entries:   views,
		Warnings:  warnings,
	}, nil)
}

func (a *ArchiveAPI) lookup(w http.ResponseWriter, r *http.Request) (*engine.ArchiveHandle, bool) {
	id := r.PathValue("id")
	handle, ok := a.reg.Get(id)
	if !ok {
		server.SendError(w, r, core.NewError(core.ErrorCodeNotFound, "unknown archive id"))
		return nil, false
	}
	return handle, true
}

// handleEntry implements GET /v0/archive/{id}/entries/{path...}: extracts
// one entry's decoded bytes, honoring ?preview=1 for the preview-size gate
// (spec.md §4.4 Step 4).
func (a *ArchiveAPI) handleEntry(w http.ResponseWriter, r *http.Request) {
	handle, ok := a.lookup(w, r)
	if !ok {
		return
	}
	path := r.PathValue("path")
	entry, ok := handle.FindEntry(path)
	if !ok {
		server.SendError(w, r, core.NewError(core.ErrorCodeNotFound, "no such entry"))
		return
	}
	if entry.IsDirectory {
		server.SendError(w, r, core.NewError(core.ErrorCodeBadRequest, "entry is a directory"))
		return
	}

	preview := r.URL.Query().Get("preview") == "1"
	res, err := handle.Extract(entry, extractor.Options{Preview: preview})
	if err != nil {
		server.SendError(w, r, err)
		return
	}

	mimeType := extractor.SniffMIME(res.Data)
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "max-age=3600, immutable")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(res.Data)
	}
}

// handleMedia implements GET /v0/archive/{id}/media/{path...}: streams a
// STORED entry's raw bytes directly from the archive's ByteSource through
// MediaGateway, honoring an inbound Range header relative to the entry
// (spec.md §4.5).
func (a *ArchiveAPI) handleMedia(w http.ResponseWriter, r *http.Request) {
	handle, ok := a.lookup(w, r)
	if !ok {
		return
	}
	path := r.PathValue("path")
	entry, ok := handle.FindEntry(path)
	if !ok {
		server.SendError(w, r, core.NewError(core.ErrorCodeNotFound, "no such entry"))
		return
	}
	if entry.IsDirectory {
		server.SendError(w, r, core.NewError(core.ErrorCodeBadRequest, "entry is a directory"))
		return
	}
	if entry.CompressionMethod != zipdir.MethodStored {
		server.SendError(w, r, core.NewError(core.ErrorCodeUnsupportedMethod, "entry is not stored uncompressed, range streaming unavailable"))
		return
	}

	dataStart, dataEnd, err := handle.DataRange(entry)
	if err != nil {
		server.SendError(w, r, err)
		return
	}

	mimeType := mime.TypeByExtension(filepath.Ext(entry.Name))
	if err := mediagateway.Stream(w, r, handle.Source, dataStart, dataEnd, mimeType); err != nil {
		log.Error("media stream failed", "error", err, "path", path)
	}
}

type zipRequest struct {
	Paths []string `json:"paths"`
}

// handleZip implements POST /v0/archive/{id}/zip: re-fetches the selected
// entries and assembles a fresh ZIP via SurgicalArchiver (spec.md §4.6),
// applying the single-entry and all-entries short-circuits at the HTTP
// layer since those decisions depend on the response shape, not anything
// ArchiveHandle itself needs to know about.
func (a *ArchiveAPI) handleZip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		server.SendError(w, r, core.NewError(core.ErrorCodeMethodNotAllowed, "method not allowed"))
		return
	}
	handle, ok := a.lookup(w, r)
	if !ok {
		return
	}

	var req zipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.SendError(w, r, core.NewError(core.ErrorCodeBadRequest, "invalid request body"))
		return
	}
	if len(req.Paths) == 0 {
		server.SendError(w, r, core.NewError(core.ErrorCodeBadRequest, "no paths selected"))
		return
	}

	// Single-entry bypass: a lone non-directory selection is served as the
	// decoded entry itself rather than a one-entry ZIP wrapper.
	if len(req.Paths) == 1 {
		if entry, ok := handle.FindEntry(req.Paths[0]); ok && !entry.IsDirectory {
			res, err := handle.Extract(entry, extractor.Options{})
			if err != nil {
				server.SendError(w, r, err)
				return
			}
			w.Header().Set("Content-Type", extractor.SniffMIME(res.Data))
			w.Header().Set("Content-Disposition", `attachment; filename="`+entry.Name+`"`)
			w.WriteHeader(http.StatusOK)
			w.Write(res.Data)
			return
		}
	}

	// All-entries short-circuit: selecting every non-directory entry in
	// the archive redirects to the original source instead of re-fetching
	// and recompressing bytes the origin already serves as one ZIP.
	if handle.SourceURL != "" && selectsAllEntries(handle.Entries, req.Paths) {
		http.Redirect(w, r, handle.SourceURL, http.StatusFound)
		return
	}

	confirm := func(totalSize int64, entryCount int) bool {
		return r.URL.Query().Get("confirm") == "1"
	}

	result, err := handle.Archive(r.Context(), req.Paths, confirm)
	if err != nil {
		server.SendError(w, r, err)
		return
	}
	if len(result.Warnings) > 0 {
		var paths []string
		for _, wn := range result.Warnings {
			paths = append(paths, wn.Path)
		}
		w.Header().Set("X-Partial-Warnings", strings.Join(paths, ","))
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="selection.zip"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Data)
}

func selectsAllEntries(entries []zipdir.Entry, paths []string) bool {
	wanted := make(map[string]bool, len(paths))
	for _, p := range paths {
		wanted[p] = true
	}
	for _, e := range entries {
		if e.IsDirectory {
			continue
		}
		if !wanted[e.Path] {
			return false
		}
	}
	return true
}
