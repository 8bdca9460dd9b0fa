package validation

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schemas.cue
var schemasCUE string

// Validation error codes (E200-E299)
const (
	ErrKeyMissing    = "E201" // required key absent
	ErrKeyWrongType  = "E202" // value has the wrong kind
	ErrNotObject     = "E203" // document is not a JSON object
	ErrInvalidJSON   = "E204" // document or line does not parse
	ErrSchemaUnknown = "E205" // schema name not in schemas.cue
	ErrKeyUnknown    = "E206" // key not allowed by a closed schema
)

// Schema names a definition in schemas.cue.
type Schema string

// Known schemas.
const (
	HITTypeProperties           Schema = "#HITTypeProperties"
	HITProperties               Schema = "#HITProperties"
	QualificationTypeProperties Schema = "#QualificationTypeProperties"
)

// Problem describes one offending key.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error reports every problem found in one property document.
type Error struct {
	Document string    `json:"document"`
	Problems []Problem `json:"problems"`
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	return fmt.Sprintf("properties file (%s) had the following validation errors:\n%s",
		e.Document, strings.Join(msgs, "\n"))
}

// Messages returns the problem messages in schema order.
func (e *Error) Messages() []string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	return msgs
}

var (
	schemaOnce  sync.Once
	schemaCtx   *cue.Context
	schemaValue cue.Value
	schemaErr   error
)

func schemas() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		schemaValue = schemaCtx.CompileString(schemasCUE, cue.Filename("schemas.cue"))
		schemaErr = schemaValue.Err()
	})
	return schemaCtx, schemaValue, schemaErr
}

// Check compares a JSON document against schema and returns one problem per
// offending key: required keys that are missing, keys that hold a value of
// the wrong kind, then keys a closed schema does not allow, in document
// order.
func Check(schema Schema, name string, data []byte) ([]Problem, error) {
	ctx, all, err := schemas()
	if err != nil {
		return nil, fmt.Errorf("compiling schemas: %w", err)
	}

	def := all.LookupPath(cue.ParsePath(string(schema)))
	if !def.Exists() {
		return []Problem{{Field: string(schema), Message: fmt.Sprintf("unknown schema %s", schema), Code: ErrSchemaUnknown}}, nil
	}

	expr, err := cuejson.Extract(name, data)
	if err != nil {
		return []Problem{{Field: name, Message: fmt.Sprintf("invalid JSON: %v", err), Code: ErrInvalidJSON}}, nil
	}
	doc := ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return []Problem{{Field: name, Message: fmt.Sprintf("invalid JSON: %v", err), Code: ErrInvalidJSON}}, nil
	}
	if doc.IncompleteKind() != cue.StructKind {
		return []Problem{{Field: name, Message: "document is not a JSON object", Code: ErrNotObject}}, nil
	}

	var problems []Problem
	iter, err := def.Fields(cue.Optional(true))
	if err != nil {
		return nil, fmt.Errorf("iterating schema %s: %w", schema, err)
	}
	for iter.Next() {
		key := iter.Label()
		want := iter.Value()

		got := doc.LookupPath(cue.MakePath(cue.Str(key)))
		if !got.Exists() {
			if iter.IsOptional() {
				continue
			}
			problems = append(problems, Problem{
				Field:   key,
				Message: fmt.Sprintf("Key (%s) was not found.", key),
				Code:    ErrKeyMissing,
			})
			continue
		}
		if err := want.Unify(got).Validate(cue.Concrete(true)); err != nil {
			problems = append(problems, Problem{
				Field:   key,
				Message: fmt.Sprintf("Key (%s) is not of type %s", key, want.IncompleteKind()),
				Code:    ErrKeyWrongType,
			})
		}
	}

	fields, err := doc.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating %s: %w", name, err)
	}
	for fields.Next() {
		key := fields.Label()
		if def.Allows(cue.Str(key)) {
			continue
		}
		problems = append(problems, Problem{
			Field:   key,
			Message: fmt.Sprintf("Key (%s) is not supported.", key),
			Code:    ErrKeyUnknown,
		})
	}

	return problems, nil
}

// ValidateFile reads a property document and checks it against schema.
// A document with problems yields an *Error.
func ValidateFile(schema Schema, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	problems, err := Check(schema, path, data)
	if err != nil {
		return nil, err
	}
	if len(problems) > 0 {
		return nil, &Error{Document: path, Problems: problems}
	}
	return data, nil
}
