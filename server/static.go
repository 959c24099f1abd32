package server

import (
	"embed"
	"net/http"
)

// staticAssets holds the browser playback client (C8). It has no
// counterpart in this codebase's existing Go-side conventions since it is
// not Go code; it implements the wire-level playback algorithm literally
// rather than following any in-repo idiom.
//
//go:embed static/player.js
var staticAssets embed.FS

// StaticHandler serves the embedded playback client assets under a fixed
// prefix, e.g. GET /static/player.js.
type StaticHandler struct{}

func NewStaticHandler() *StaticHandler {
	return &StaticHandler{}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http.FileServer(http.FS(staticAssets)).ServeHTTP(w, r)
}
