package definition

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

//go:embed schema/definition.schema.json
var schemaBytes []byte

const schemaURL = "definition.schema.json"

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
	printer        = message.NewPrinter(language.English)
)

// Issue is one schema violation.
type Issue struct {
	Path    string
	Keyword string
	Message string
}

func (i Issue) String() string {
	path := i.Path
	if path == "" {
		path = "/"
	}
	return path + ": " + i.Message
}

// Validator implements ports.DefinitionValidator with the embedded JSON schema.
type Validator struct{}

// NewValidator creates a Validator, compiling the schema on first use.
func NewValidator() (*Validator, error) {
	if _, err := getSchema(); err != nil {
		return nil, err
	}
	return &Validator{}, nil
}

func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			compileErr = zerr.Wrap(err, "failed to unmarshal definition schema")
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = zerr.Wrap(err, "failed to add definition schema")
			return
		}
		compiledSchema, err = c.Compile(schemaURL)
		if err != nil {
			compileErr = zerr.Wrap(err, "failed to compile definition schema")
		}
	})
	return compiledSchema, compileErr
}

// Validate checks raw against the schema and decodes it into a Definition.
func (v *Validator) Validate(raw *ports.RawDefinition) (*domain.Definition, error) {
	schema, err := getSchema()
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON so numbers reach the validator as json.Number.
	data, err := json.Marshal(raw.Document)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrDefinitionParse, err.Error()), "origin", raw.Origin)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrDefinitionParse, err.Error()), "origin", raw.Origin)
	}

	if err := schema.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return nil, zerr.Wrap(err, "schema validation failed")
		}
		issues := collectIssues(ve)
		lines := make([]string, len(issues))
		for i, issue := range issues {
			lines[i] = issue.String()
		}
		invalid := zerr.Wrap(domain.ErrDefinitionInvalid, strings.Join(lines, "\n"))
		return nil, zerr.With(invalid, "origin", raw.Origin)
	}

	var def domain.Definition
	if err := yaml.Unmarshal(raw.Content, &def); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrDefinitionParse, err.Error()), "origin", raw.Origin)
	}
	def.Raw = raw.Content
	return &def, nil
}

// collectIssues flattens the error tree into leaf issues, sorted by path.
func collectIssues(ve *jsonschema.ValidationError) []Issue {
	var issues []Issue
	walkIssues(ve, &issues)

	if len(issues) == 0 {
		return []Issue{{Message: ve.Error()}}
	}

	seen := make(map[Issue]struct{}, len(issues))
	out := issues[:0]
	for _, issue := range issues {
		if _, dup := seen[issue]; dup {
			continue
		}
		seen[issue] = struct{}{}
		out = append(out, issue)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func walkIssues(ve *jsonschema.ValidationError, issues *[]Issue) {
	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			walkIssues(cause, issues)
		}
		return
	}
	if ve.ErrorKind == nil {
		return
	}

	keyword := ""
	if kw := ve.ErrorKind.KeywordPath(); len(kw) > 0 {
		keyword = kw[len(kw)-1]
	}
	switch keyword {
	case "", "allOf", "oneOf", "$ref", "if", "then":
		return
	}

	path := ""
	if len(ve.InstanceLocation) > 0 {
		path = "/" + strings.Join(ve.InstanceLocation, "/")
	}
	*issues = append(*issues, Issue{
		Path:    path,
		Keyword: keyword,
		Message: ve.ErrorKind.LocalizedString(printer),
	})
}
