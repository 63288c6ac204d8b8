// Package report renders the acquisition report: a Markdown document,
// its HTML rendering and a YAML sidecar carrying the same facts.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/digest"
)

// Output file names.
const (
	MarkdownFile = "acquisition_report.md"
	HTMLFile     = "acquisition_report.html"
	YAMLFile     = "acquisition.yaml"
)

// Step is the outcome of one post-processing step.
type Step struct {
	Name    string        `yaml:"name"`
	Output  string        `yaml:"output,omitempty"`
	Error   string        `yaml:"error,omitempty"`
	Elapsed time.Duration `yaml:"elapsed"`
}

// Report holds the facts of one acquisition.
type Report struct {
	Tool         string        `yaml:"tool"`
	CaseNumber   string        `yaml:"case_number"`
	Examiner     string        `yaml:"examiner"`
	Evidence     string        `yaml:"evidence_number"`
	Notes        string        `yaml:"notes,omitempty"`
	Generated    time.Time     `yaml:"generated_utc"`
	Source       string        `yaml:"source"`
	SourceKind   string        `yaml:"source_kind"`
	RawImage     string        `yaml:"raw_image"`
	FinalImage   string        `yaml:"final_image"`
	Bytes        int64         `yaml:"bytes"`
	Digests      []digest.Sum  `yaml:"digests"`
	BadSectors   int64         `yaml:"bad_sectors"`
	Protection   string        `yaml:"write_block"`
	Elapsed      time.Duration `yaml:"elapsed"`
	Verified     *bool         `yaml:"verified,omitempty"`
	Steps        []Step        `yaml:"post_processing,omitempty"`
	LedgerID     string        `yaml:"ledger_id,omitempty"`
	Journal      string        `yaml:"-"`
	JournalError string        `yaml:"-"`
}

// LoadJournal embeds the journal file at path, or notes why it could not.
func (r *Report) LoadJournal(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		r.JournalError = fmt.Sprintf("Could not read log file: %v", err)
		return
	}
	r.Journal = string(data)
}

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"orNA": func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	},
	"utc": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"seconds": func(d time.Duration) string {
		return fmt.Sprintf("%.2fs", d.Seconds())
	},
	"cell":  func(s string) string { return strings.ReplaceAll(s, "|", `\|`) },
	"deref": func(b *bool) bool { return b != nil && *b },
}

var markdownTmpl = template.Must(template.New("report").Funcs(funcs).Parse(`# Forensic Acquisition Report

| Field | Value |
|---|---|
| Case Number | {{orNA .CaseNumber | cell}} |
| Examiner | {{orNA .Examiner | cell}} |
| Evidence Number | {{orNA .Evidence | cell}} |
| Timestamp (UTC) | {{utc .Generated}} |
{{- if .Notes}}
| Notes | {{cell .Notes}} |
{{- end}}

## Evidence

| Field | Value |
|---|---|
| Source Device | ` + "`{{.Source}}`" + ` ({{.SourceKind}}) |
| Raw Image | ` + "`{{.RawImage}}`" + ` |
| Final Image Path | ` + "`{{.FinalImage}}`" + ` |
| Bytes Acquired | {{.Bytes}} |
| Software Write-Block | {{.Protection}} |
| Bad Sectors | {{.BadSectors}} |
| Elapsed | {{seconds .Elapsed}} |
{{- if .Verified}}
| Verification | {{if deref .Verified}}passed{{else}}FAILED{{end}} |
{{- end}}
{{- if .LedgerID}}
| Ledger ID | ` + "`{{.LedgerID}}`" + ` |
{{- end}}

## Hashes

| Algorithm | Digest |
|---|---|
{{- range .Digests}}
| {{upper .Algorithm}} | ` + "`{{.Hex}}`" + ` |
{{- end}}
{{- if .Steps}}

## Post-processing

| Step | Result | Output | Time |
|---|---|---|---|
{{- range .Steps}}
| {{.Name}} | {{if .Error}}failed: {{cell .Error}}{{else}}ok{{end}} | {{if .Output}}` + "`{{.Output}}`" + `{{end}} | {{seconds .Elapsed}} |
{{- end}}
{{- end}}

## Acquisition Log

{{if .JournalError}}{{.JournalError}}
{{else}}` + "```" + `
{{.Journal}}` + "```" + `
{{end}}`))

// Markdown renders the report as Markdown.
func (r *Report) Markdown() ([]byte, error) {
	if r.Journal != "" && !strings.HasSuffix(r.Journal, "\n") {
		r.Journal += "\n"
	}
	var buf bytes.Buffer
	if err := markdownTmpl.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	mdOnce sync.Once
	md     goldmark.Markdown
)

func markdown() goldmark.Markdown {
	mdOnce.Do(func() {
		md = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return md
}

// HTML renders Markdown output as a standalone HTML page.
func HTML(title string, src []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown().Convert(src, &body); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 60em; margin: 2em auto; }
table { border-collapse: collapse; }
td, th { border: 1px solid #999; padding: 0.25em 0.5em; text-align: left; }
pre { background: #f4f4f4; padding: 1em; overflow-x: auto; font-size: 0.85em; }
</style>
</head>
<body>
`, template.HTMLEscapeString(title))
	buf.Write(body.Bytes())
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

// YAML renders the machine-readable sidecar.
func (r *Report) YAML() ([]byte, error) {
	out, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("render yaml: %w", err)
	}
	return out, nil
}

// Paths of the written report files.
type Paths struct {
	Markdown string
	HTML     string
	YAML     string
}

// Write renders all three forms into dir.
func (r *Report) Write(dir string) (Paths, error) {
	p := Paths{
		Markdown: filepath.Join(dir, MarkdownFile),
		HTML:     filepath.Join(dir, HTMLFile),
		YAML:     filepath.Join(dir, YAMLFile),
	}

	mdBytes, err := r.Markdown()
	if err != nil {
		return Paths{}, err
	}
	htmlBytes, err := HTML("Forensic Acquisition Report", mdBytes)
	if err != nil {
		return Paths{}, err
	}
	yamlBytes, err := r.YAML()
	if err != nil {
		return Paths{}, err
	}

	for path, data := range map[string][]byte{p.Markdown: mdBytes, p.HTML: htmlBytes, p.YAML: yamlBytes} {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return Paths{}, fmt.Errorf("write %s: %w", path, err)
		}
	}
	return p, nil
}
