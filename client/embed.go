// Package client embeds the browser script that drives live pages.
package client

import (
	"embed"
	"fmt"
	"hash/fnv"
	"io/fs"
	"net/http"
	"sync"
)

// ScriptName is the file name of the live client under the mount prefix.
const ScriptName = "live.js"

//go:embed src/*.js
var assets embed.FS

var version = sync.OnceValue(func() string {
	data, err := assets.ReadFile("src/" + ScriptName)
	if err != nil {
		panic(err)
	}
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
})

// Version is a content hash of the embedded script.
func Version() string {
	return version()
}

// ScriptURL is the versioned URL of the script under prefix, e.g. "/_live".
// Changing the script changes the URL, so browsers never run a stale client
// against a newer server.
func ScriptURL(prefix string) string {
	return prefix + "/" + ScriptName + "?v=" + Version()
}

// Handler serves the embedded scripts. Mount it behind http.StripPrefix.
// Requests carrying the current version are cacheable forever; others must
// revalidate against the ETag.
func Handler() http.Handler {
	sub, err := fs.Sub(assets, "src")
	if err != nil {
		panic(err)
	}
	files := http.FileServer(http.FS(sub))
	etag := `"` + Version() + `"`

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", etag)
		if r.URL.Query().Get("v") == Version() {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}
		files.ServeHTTP(w, r)
	})
}

// GetFile returns the contents of an embedded script.
func GetFile(name string) ([]byte, error) {
	return assets.ReadFile("src/" + name)
}
