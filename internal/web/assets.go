package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed assets/*.css
var assets embed.FS

// AssetsHandler serves the stylesheet under DefaultAssetPath's directory.
// Mount it with the "/assets" prefix stripped.
func AssetsHandler() http.Handler {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
