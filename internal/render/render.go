// Package render turns collected résumé data into a PDF.
//
// A layout from the Catalog is executed with html/template and the resulting
// HTML is handed to an external HTML-to-PDF converter (weasyprint by default).
package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

// Defaults applied when options are not given.
const (
	DefaultConverter   = "weasyprint"
	DefaultAccentColor = "#3498db"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Document is a rendered résumé on local disk. The caller owns the file.
type Document struct {
	Path       string
	TemplateID string
}

// Renderer produces a PDF for a résumé using the given template.
type Renderer interface {
	Render(ctx context.Context, resume models.Resume, templateID string) (Document, error)
}

// Converter turns an HTML file into a PDF file.
type Converter interface {
	Convert(ctx context.Context, htmlPath, pdfPath string) error
}

// CommandConverter runs an external program as "<Command> <Args...> in.html out.pdf".
type CommandConverter struct {
	Command string
	Args    []string
}

// Convert implements Converter.
func (c CommandConverter) Convert(ctx context.Context, htmlPath, pdfPath string) (err error) {
	args := append(append([]string(nil), c.Args...), htmlPath, pdfPath)
	cmd := exec.CommandContext(ctx, c.Command, args...)
	cmd.Dir = filepath.Dir(htmlPath)

	var output []byte
	output, err = cmd.CombinedOutput()
	if err != nil {
		err = errors.Wrapf(err, "%s failed: %s", c.Command, strings.TrimSpace(string(output)))
		return err
	}
	return err
}

// Opts holds configuration options for the HTML renderer.
type Opts struct {
	OutputDir string
	Catalog   *Catalog
	Converter Converter
}

// Option defines a configuration option for the HTML renderer.
type Option func(*Opts)

// WithOutputDir sets where rendered PDFs are written.
func WithOutputDir(dir string) Option {
	return func(o *Opts) { o.OutputDir = dir }
}

// WithCatalog replaces the built-in template catalog.
func WithCatalog(c *Catalog) Option {
	return func(o *Opts) { o.Catalog = c }
}

// WithConverter replaces the weasyprint converter.
func WithConverter(c Converter) Option {
	return func(o *Opts) { o.Converter = c }
}

// WithConverterCommand runs a different HTML-to-PDF program.
func WithConverterCommand(command string, args ...string) Option {
	return func(o *Opts) { o.Converter = CommandConverter{Command: command, Args: args} }
}

// HTMLRenderer implements Renderer with html/template and a Converter.
type HTMLRenderer struct {
	catalog   *Catalog
	converter Converter
	outputDir string

	mu     sync.Mutex
	parsed map[string]*template.Template
}

var _ Renderer = (*HTMLRenderer)(nil)

// NewHTMLRenderer creates a renderer. Without WithCatalog the built-in
// catalog is used.
func NewHTMLRenderer(opts ...Option) (r *HTMLRenderer, err error) {
	cfg := Opts{
		OutputDir: filepath.Join(os.TempDir(), "resumepipe", "pdfs"),
		Converter: CommandConverter{Command: DefaultConverter},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Catalog == nil {
		cfg.Catalog, err = DefaultCatalog()
		if err != nil {
			return nil, err
		}
	}
	err = os.MkdirAll(cfg.OutputDir, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create output directory: %s", cfg.OutputDir)
		return nil, err
	}
	slog.Debug("NewHTMLRenderer: configured", "output_dir", cfg.OutputDir, "templates", cfg.Catalog.Len())
	return &HTMLRenderer{
		catalog:   cfg.Catalog,
		converter: cfg.Converter,
		outputDir: cfg.OutputDir,
		parsed:    make(map[string]*template.Template),
	}, nil
}

// Catalog returns the templates this renderer can use.
func (r *HTMLRenderer) Catalog() *Catalog {
	return r.catalog
}

// Render writes resume_<uuid>.pdf into the output directory.
func (r *HTMLRenderer) Render(ctx context.Context, resume models.Resume, templateID string) (doc Document, err error) {
	t, ok := r.catalog.ByID(templateID)
	if !ok {
		err = errors.Errorf("unknown template %q", templateID)
		return doc, err
	}

	var html []byte
	html, err = r.RenderHTML(resume, t)
	if err != nil {
		return doc, err
	}

	name := "resume_" + uuid.NewString()
	htmlPath := filepath.Join(r.outputDir, name+".html")
	pdfPath := filepath.Join(r.outputDir, name+".pdf")

	err = os.WriteFile(htmlPath, html, 0600)
	if err != nil {
		err = errors.Wrapf(err, "failed to write html file: %s", htmlPath)
		return doc, err
	}
	defer func() {
		if rmErr := os.Remove(htmlPath); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("HTMLRenderer.Render: failed to remove html file", "path", htmlPath, "error", rmErr)
		}
	}()

	err = r.converter.Convert(ctx, htmlPath, pdfPath)
	if err != nil {
		_ = os.Remove(pdfPath)
		err = errors.Wrapf(err, "failed to convert template %q", t.ID)
		return doc, err
	}
	_, err = os.Stat(pdfPath)
	if err != nil {
		err = errors.Wrap(err, "converter produced no pdf")
		return doc, err
	}

	slog.Info("HTMLRenderer.Render: rendered", "template", t.ID, "path", pdfPath)
	doc = Document{Path: pdfPath, TemplateID: t.ID}
	return doc, err
}

// RenderHTML executes template t for resume.
func (r *HTMLRenderer) RenderHTML(resume models.Resume, t Template) (out []byte, err error) {
	var tmpl *template.Template
	tmpl, err = r.template(t)
	if err != nil {
		return out, err
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, newView(resume))
	if err != nil {
		err = errors.Wrapf(err, "failed to execute template %q", t.ID)
		return out, err
	}
	out = buf.Bytes()
	return out, err
}

func (r *HTMLRenderer) template(t Template) (tmpl *template.Template, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tmpl, ok := r.parsed[t.ID]; ok {
		return tmpl, nil
	}

	var src []byte
	src, err = r.catalog.readFile(t.File)
	if err != nil {
		err = errors.Wrapf(err, "failed to read template file: %s", t.File)
		return tmpl, err
	}
	tmpl, err = template.New(t.ID).Funcs(funcs).Parse(string(src))
	if err != nil {
		err = errors.Wrapf(err, "failed to parse template %q", t.ID)
		return tmpl, err
	}
	r.parsed[t.ID] = tmpl
	return tmpl, err
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"stars": func(rating int) string {
		rating = max(models.MinSkillRating, min(rating, models.MaxSkillRating))
		return strings.Repeat("★", rating) + strings.Repeat("☆", models.MaxSkillRating-rating)
	},
	"percent": func(rating int) int {
		rating = max(models.MinSkillRating, min(rating, models.MaxSkillRating))
		return rating * 100 / models.MaxSkillRating
	},
}

// Entry is one experience or education line split into its comma-separated parts.
type Entry struct {
	Title  string
	Org    string
	Period string
	Detail string
}

// ParseEntry splits "Title, Organisation, Period, Detail". Anything past the
// third comma belongs to Detail.
func ParseEntry(s string) Entry {
	parts := strings.SplitN(s, ",", 4)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	var e Entry
	e.Title = parts[0]
	if len(parts) > 1 {
		e.Org = parts[1]
	}
	if len(parts) > 2 {
		e.Period = parts[2]
	}
	if len(parts) > 3 {
		e.Detail = parts[3]
	}
	return e
}

// view is the data handed to layouts.
type view struct {
	models.Resume
	Intro      string
	Contacts   []string
	SkillNames []string
	Experience []Entry
	Education  []Entry
	Accent     template.CSS
	Photo      template.URL
}

func newView(r models.Resume) view {
	v := view{Resume: r, Intro: r.AboutMe, SkillNames: r.SkillNames()}
	if v.Intro == "" {
		v.Intro = r.Summary
	}
	for _, c := range []string{r.Email, r.Phone, r.Website, r.Address} {
		if c != "" {
			v.Contacts = append(v.Contacts, c)
		}
	}
	for _, e := range r.Experience {
		v.Experience = append(v.Experience, ParseEntry(e))
	}
	for _, e := range r.Education {
		v.Education = append(v.Education, ParseEntry(e))
	}

	v.Accent = template.CSS(DefaultAccentColor)
	if hexColor.MatchString(r.AccentColor) {
		v.Accent = template.CSS(r.AccentColor)
	}
	if r.PhotoPath != "" {
		if _, err := os.Stat(r.PhotoPath); err == nil {
			v.Photo = template.URL(fileURI(r.PhotoPath))
		}
	}
	return v
}

func fileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// String implements fmt.Stringer for log output.
func (d Document) String() string {
	return fmt.Sprintf("%s (%s)", d.Path, d.TemplateID)
}
