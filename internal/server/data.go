package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// handleData serves files from dir under /data/. Directories are never
// listed; anything that is not a regular file is a 404.
func handleData(dir string) http.HandlerFunc {
	fileServer := http.StripPrefix("/data", http.FileServer(http.Dir(dir)))

	return func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/data")
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		if strings.HasSuffix(rel, ".json") {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		fileServer.ServeHTTP(w, r)
	}
}
