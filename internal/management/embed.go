package management

import (
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

//go:embed ui/dist
var uiDist embed.FS

// handleUI serves the bundled dashboard. Unknown non-API paths fall back to
// index.html so client-side routes resolve.
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	name := path.Join("ui/dist", path.Clean("/"+r.URL.Path))
	if info, err := fs.Stat(uiDist, name); err != nil || info.IsDir() {
		name = "ui/dist/index.html"
	}
	data, err := uiDist.ReadFile(name)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if ctype := mime.TypeByExtension(path.Ext(name)); ctype != "" {
		w.Header().Set("Content-Type", ctype)
	}
	_, _ = w.Write(data)
}
