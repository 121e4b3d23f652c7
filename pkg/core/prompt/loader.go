package prompt

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

//go:embed builtin
var builtin embed.FS

// Default returns a registry holding the embedded prompts.
func Default() (*Registry, error) {
	r := NewRegistry()
	sub, err := fs.Sub(builtin, "builtin")
	if err != nil {
		return nil, err
	}
	if err := r.LoadFS(sub); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadDirectory overlays prompts from dir on top of what is registered.
// Expected structure:
//
//	dir/
//	  narrative/
//	    valuation.json
//	  schemas/
//	    narrative.json
func (r *Registry) LoadDirectory(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("prompts directory: %w", err)
	}
	return r.LoadFS(os.DirFS(dir))
}

// LoadFS walks fsys and registers every .json file. Files under schemas/ are
// registered as response schemas, everything else as prompts.
func (r *Registry) LoadFS(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".json" {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}

		if strings.HasPrefix(p, "schemas/") {
			base := strings.TrimSuffix(path.Base(p), ".json")
			return r.RegisterSchema(&ResponseSchema{ID: base, JSONSchema: string(data)})
		}

		var pt PromptTemplate
		if err := json.Unmarshal(data, &pt); err != nil {
			return fmt.Errorf("failed to parse %s: %w", p, err)
		}
		// "narrative/valuation.json" -> "narrative.valuation"
		if pt.ID == "" {
			pt.ID = strings.ReplaceAll(strings.TrimSuffix(p, ".json"), "/", ".")
		}
		if pt.Category == "" {
			if i := strings.Index(p, "/"); i > 0 {
				pt.Category = p[:i]
			} else {
				pt.Category = "default"
			}
		}
		return r.Register(&pt)
	})
}
