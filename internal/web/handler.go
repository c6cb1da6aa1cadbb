// Package web serves the embedded operator dashboard.
package web

import (
	"embed"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:static
var staticFS embed.FS

type Handler struct {
	staticFS fs.FS
}

func NewHandler() *Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		sub = staticFS
	}
	return &Handler{staticFS: sub}
}

// ServeStatic serves the dashboard files, falling back to index.html for
// unknown non-asset paths.
func (h *Handler) ServeStatic(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if p == "" || p == "." {
		p = "index.html"
	}

	file, err := h.staticFS.Open(p)
	if err != nil {
		if !strings.Contains(p, ".") {
			file, err = h.staticFS.Open("index.html")
		}
		if err != nil {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.ServeContent(w, r, stat.Name(), stat.ModTime(), file.(io.ReadSeeker))
}
