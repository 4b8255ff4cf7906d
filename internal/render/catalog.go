package render

import (
	"embed"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// CatalogFile is the catalog file name inside a template directory.
const CatalogFile = "templates.yaml"

//go:embed templates
var builtinTemplates embed.FS

// Template describes one résumé layout.
type Template struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	File string `yaml:"file"`
	// Preview is an optional image shown when the user picks a layout.
	Preview string `yaml:"preview,omitempty"`
	// Style picks the summary prompt flavour ("modern" or "creative").
	Style string `yaml:"style,omitempty"`
}

// Catalog is the ordered set of available templates together with the file
// system their HTML is read from.
type Catalog struct {
	Templates []Template `yaml:"templates"`

	fsys fs.FS
	dir  string
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (c *Catalog, err error) {
	sub, err := fs.Sub(builtinTemplates, "templates")
	if err != nil {
		err = errors.Wrap(err, "failed to open built-in templates")
		return c, err
	}
	c, err = LoadCatalog(sub)
	return c, err
}

// LoadCatalogDir loads templates.yaml and its HTML files from dir.
func LoadCatalogDir(dir string) (c *Catalog, err error) {
	c, err = LoadCatalog(os.DirFS(dir))
	if err != nil {
		err = errors.Wrapf(err, "template directory %s", dir)
		return c, err
	}
	c.dir = dir
	return c, err
}

// LoadCatalog reads CatalogFile from fsys and checks that every listed file exists.
func LoadCatalog(fsys fs.FS) (c *Catalog, err error) {
	var data []byte
	data, err = fs.ReadFile(fsys, CatalogFile)
	if err != nil {
		err = errors.Wrapf(err, "failed to read %s", CatalogFile)
		return c, err
	}

	c = &Catalog{fsys: fsys}
	err = yaml.Unmarshal(data, c)
	if err != nil {
		err = errors.Wrapf(err, "failed to parse %s", CatalogFile)
		return nil, err
	}
	if len(c.Templates) == 0 {
		err = errors.Errorf("%s lists no templates", CatalogFile)
		return nil, err
	}

	seen := make(map[string]bool, len(c.Templates))
	for i, t := range c.Templates {
		if t.ID == "" || t.File == "" {
			err = errors.Errorf("template %d: id and file are required", i+1)
			return nil, err
		}
		if seen[t.ID] {
			err = errors.Errorf("duplicate template id %q", t.ID)
			return nil, err
		}
		seen[t.ID] = true
		if t.Name == "" {
			c.Templates[i].Name = t.ID
		}
		_, err = fs.Stat(fsys, t.File)
		if err != nil {
			err = errors.Wrapf(err, "template %q", t.ID)
			return nil, err
		}
	}
	return c, nil
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.Templates)
}

// ByIndex returns the template at a 1-based menu position.
func (c *Catalog) ByIndex(n int) (Template, bool) {
	if n < 1 || n > len(c.Templates) {
		return Template{}, false
	}
	return c.Templates[n-1], true
}

// ByID looks a template up by id.
func (c *Catalog) ByID(id string) (Template, bool) {
	for _, t := range c.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Random picks a template, avoiding exclude unless it is the only one.
func (c *Catalog) Random(exclude string) Template {
	candidates := make([]Template, 0, len(c.Templates))
	for _, t := range c.Templates {
		if t.ID != exclude {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		candidates = c.Templates
	}
	return candidates[rand.IntN(len(candidates))]
}

// PreviewPath returns an on-disk path for the template preview, or "" when
// the template has none or the catalog is not backed by a directory.
func (c *Catalog) PreviewPath(t Template) string {
	if t.Preview == "" || c.dir == "" {
		return ""
	}
	return filepath.Join(c.dir, t.Preview)
}

func (c *Catalog) readFile(name string) ([]byte, error) {
	return fs.ReadFile(c.fsys, name)
}
