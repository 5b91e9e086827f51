// Package web serves the browser front-end.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var embedded embed.FS

// Handler serves the embedded page, or the files under dir when dir is set.
func Handler(dir string) http.Handler {
	if dir != "" {
		return http.FileServer(http.Dir(dir))
	}
	sub, err := fs.Sub(embedded, "static")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}
	return http.FileServerFS(sub)
}

func RegisterRoutes(mux *http.ServeMux, dir string) {
	mux.Handle("GET /", Handler(dir))
}
