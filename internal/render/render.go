// Package render fills question templates with the values of one data line.
//
// Templates use Jinja2 syntax and are evaluated with pongo2. Autoescaping
// is off: question templates produce XML and HTML fragments that must reach
// Mechanical Turk unchanged.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/flosch/pongo2/v6"
)

func init() {
	pongo2.SetAutoescape(false)
}

// Template is a compiled question template.
type Template struct {
	name string
	tpl  *pongo2.Template
}

// Compile parses template source. name is used in error messages.
func Compile(name, src string) (*Template, error) {
	tpl, err := pongo2.FromString(src)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return &Template{name: name, tpl: tpl}, nil
}

// CompileFile reads and parses a template file.
func CompileFile(path string) (*Template, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return Compile(path, string(src))
}

// Execute renders the template with vars bound as top-level names.
func (t *Template) Execute(vars map[string]any) (string, error) {
	out, err := t.tpl.Execute(pongo2.Context(vars))
	if err != nil {
		return "", fmt.Errorf("render template %s: %w", t.name, err)
	}
	return out, nil
}

// DecodeLine parses one data line into template variables. Integral
// numbers decode as int64 so that they print without a fractional part.
func DecodeLine(line []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("data line is not a JSON object")
	}
	for k, v := range obj {
		obj[k] = normalize(v)
	}
	return obj, nil
}

func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		for k, elem := range val {
			val[k] = normalize(elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = normalize(elem)
		}
		return val
	default:
		return v
	}
}
