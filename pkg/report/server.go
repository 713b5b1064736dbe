package report

import (
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Bedrock usage reports</title>
<style>body{font-family:ui-sans-serif,system-ui,sans-serif;margin:2rem auto;max-width:48rem}</style>
</head><body>
<h1>Bedrock usage reports</h1>
{{if .}}
<ul>
{{range .}}<li><a href="/{{.HTML}}">{{.Model}}</a> (<a href="/{{.JSON}}">json</a>)</li>
{{end}}
</ul>
{{else}}<p>No reports yet. Run an analysis first.</p>{{end}}
</body></html>
`))

type indexEntry struct {
	Model string
	HTML  string
	JSON  string
}

// NewServer serves the report output directory on localhost with an
// index of generated reports.
func NewServer(dir string, port int) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		entries, err := listReports(dir)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = indexPage.Execute(w, entries)
	})
	r.Handle("/*", http.FileServer(http.Dir(dir)))

	return &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func listReports(dir string) ([]indexEntry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []indexEntry
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".html") {
			continue
		}
		base := strings.TrimSuffix(name, ".html")
		e := indexEntry{Model: base, HTML: name}
		if _, err := os.Stat(filepath.Join(dir, base+".json")); err == nil {
			e.JSON = base + ".json"
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Model < entries[j].Model })
	return entries, nil
}
