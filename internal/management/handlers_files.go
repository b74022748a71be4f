package management

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/grixate/missioncontrol/internal/apperr"
	"github.com/grixate/missioncontrol/internal/workspace"
)

const uploadMemory = 1 << 20

func (s *Server) handleFileTree(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	depth := workspace.DefaultTreeDepth
	if raw := q.Get("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > workspace.MaxTreeDepth {
			s.writeManageError(w, r, apperr.Invalid("depth must be between 0 and %d", workspace.MaxTreeDepth))
			return
		}
		depth = n
	}
	tree, err := s.files.Tree(r.Context(), q.Get("path"), depth)
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleFileRead(w http.ResponseWriter, r *http.Request) {
	content, err := s.files.Read(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) handleFileWrite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, workspace.MaxTextBytes*2)
	if err := readJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	content, err := s.files.Write(r.Context(), req.Path, req.Content)
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (s *Server) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.files.Delete(r.Context(), r.URL.Query().Get("path")); err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleFileRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.files.Rename(r.Context(), req.From, req.To); err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleFileMkdir(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.files.Mkdir(r.Context(), req.Path); err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

// handleFileUpload takes multipart fields "path" (target directory, empty for
// the root) and "file".
func (s *Server) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, workspace.MaxUploadBytes+uploadMemory)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid multipart body: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeManageError(w, r, apperr.Invalid("file field is required"))
		return
	}
	defer file.Close()

	node, err := s.files.Upload(r.Context(), r.FormValue("path"), header.Filename, file)
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	f, info, err := s.files.Open(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		s.writeManageError(w, r, err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(info.Name())))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
