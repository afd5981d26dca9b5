package handlers

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"html/template"
	"net/http"
)

// APISpecPath is where the router mounts APISpec.
const APISpecPath = "/v1/openapi.json"

//go:embed openapi.json
var apiSpec []byte

// apiSpecETag changes only when the embedded document does.
var apiSpecETag = func() string {
	sum := sha256.Sum256(apiSpec)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}()

var referencePage = template.Must(template.New("reference").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>body{margin:0}redoc{display:block;height:100vh}</style>
</head>
<body>
<redoc spec-url="{{.SpecURL}}"></redoc>
<script src="https://cdn.jsdelivr.net/npm/redoc@2.2.0/bundles/redoc.standalone.js"></script>
</body>
</html>
`))

// APISpec serves the embedded OpenAPI document. Clients revalidating with a
// matching If-None-Match get 304.
func (a *App) APISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("ETag", apiSpecETag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == apiSpecETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(apiSpec)
}

// APIReference renders the browsable reference for APISpec.
func (a *App) APIReference(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := referencePage.Execute(w, struct{ Title, SpecURL string }{
		Title:   "AIGC Credits API Reference",
		SpecURL: APISpecPath,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("render api reference")
	}
}
