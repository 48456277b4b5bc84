package dashboard

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"ghostlan-sim/internal/event"
)

//go:embed templates/*.tmpl
var templates embed.FS

// Tables names the GreptimeDB tables the dashboards query. Empty fields use
// the writer defaults.
type Tables struct {
	Events     string
	Detections string
}

func (t Tables) withDefaults() Tables {
	if t.Events == "" {
		t.Events = event.EventTableName
	}
	if t.Detections == "" {
		t.Detections = event.DetectionTableName
	}
	return t
}

// Render writes every dashboard template to outDir with the trailing .tmpl
// removed. Templates read the datasource uid through the env function, so
// GREPTIMEDB_DATASOURCE_UID must be set.
func Render(outDir string, tables Tables) error {
	funcMap := template.FuncMap{
		"env": func(key string) (string, error) {
			v := os.Getenv(key)
			if v == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return v, nil
		},
	}
	t, err := template.New("dashboards").Funcs(funcMap).ParseFS(templates, "templates/*.tmpl")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	data := tables.withDefaults()
	for _, tpl := range t.Templates() {
		name := tpl.Name()
		if !strings.HasSuffix(name, ".tmpl") {
			continue
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(name, ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := tpl.Execute(f, data); err != nil {
			f.Close()
			return fmt.Errorf("render %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
