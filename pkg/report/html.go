package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
)

//go:embed template.html
var pageTemplate string

var page = template.Must(template.New("report").Funcs(template.FuncMap{
	"fmtnum": func(v float64) string {
		if v >= 1000 {
			return fmt.Sprintf("%.0f", v)
		}
		return fmt.Sprintf("%.1f", v)
	},
}).Parse(pageTemplate))

// WriteHTML renders the document to a self-contained page under dir and
// returns the file path.
func WriteHTML(dir string, doc Document) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, SafeFileName(doc.ModelID)+".html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report page: %w", err)
	}
	defer f.Close()
	if err := page.Execute(f, doc); err != nil {
		return "", fmt.Errorf("render report page: %w", err)
	}
	return path, nil
}
