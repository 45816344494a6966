package commands

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/erraggy/oasguard"
	"github.com/erraggy/oasguard/engine"
	"github.com/erraggy/oasguard/formats"
	"github.com/erraggy/oasguard/openapi"
	"github.com/erraggy/oasguard/transcode"
)

// CheckFlags contains flags for the check command
type CheckFlags struct {
	Engine string
	Format string
	Quiet  bool
}

// OperationSummary describes one routable operation of a document.
type OperationSummary struct {
	Method       string   `json:"method" yaml:"method"`
	Path         string   `json:"path" yaml:"path"`
	OperationID  string   `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Parameters   int      `json:"parameters" yaml:"parameters"`
	RequestTypes []string `json:"requestTypes,omitempty" yaml:"requestTypes,omitempty"`
	Responses    []string `json:"responses" yaml:"responses"`
}

// CheckResult is the outcome of checking a document for use with the
// validator.
type CheckResult struct {
	Source     string             `json:"source" yaml:"source"`
	Version    string             `json:"version" yaml:"version"`
	Title      string             `json:"title,omitempty" yaml:"title,omitempty"`
	Engine     string             `json:"engine" yaml:"engine"`
	Paths      []string           `json:"paths" yaml:"paths"`
	Operations []OperationSummary `json:"operations" yaml:"operations"`
	Problems   []string           `json:"problems,omitempty" yaml:"problems,omitempty"`
	Valid      bool               `json:"valid" yaml:"valid"`
}

// SetupCheckFlags creates and configures a FlagSet for the check command.
func SetupCheckFlags() (*flag.FlagSet, *CheckFlags) {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	flags := &CheckFlags{}

	fs.StringVar(&flags.Engine, "engine", engine.NameJSONSchema, "schema engine used to compile schemas (jsonschema, gojsonschema)")
	fs.StringVar(&flags.Format, "format", FormatText, "output format: text, json, or yaml")
	fs.BoolVar(&flags.Quiet, "q", false, "quiet mode: only report problems")
	fs.BoolVar(&flags.Quiet, "quiet", false, "quiet mode: only report problems")

	fs.Usage = func() {
		out := fs.Output()
		Writef(out, "Usage: oasguard check [flags] <file>\n\n")
		Writef(out, "Load an OpenAPI document, list its operations, and compile every\n")
		Writef(out, "parameter, body, and header schema with the selected engine.\n\n")
		Writef(out, "Flags:\n")
		fs.PrintDefaults()
		Writef(out, "\nExamples:\n")
		Writef(out, "  oasguard check openapi.yaml\n")
		Writef(out, "  oasguard check -engine gojsonschema -format json openapi.json\n")
		Writef(out, "\nExit Codes:\n")
		Writef(out, "  0    Every schema compiled and every format is known\n")
		Writef(out, "  1    The document failed to load or has problems\n")
	}

	return fs, flags
}

// HandleCheck executes the check command
func HandleCheck(args []string) error {
	fs, flags := SetupCheckFlags()

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("check command requires exactly one file path")
	}
	if err := ValidateOutputFormat(flags.Format); err != nil {
		return err
	}

	doc, err := openapi.Load(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("loading document: %w", err)
	}
	result, err := Check(doc, flags.Engine)
	if err != nil {
		return err
	}

	if flags.Format != FormatText {
		if err := OutputStructured(os.Stdout, result, flags.Format); err != nil {
			return err
		}
	} else {
		writeCheckText(result, flags.Quiet)
	}

	if !result.Valid {
		return fmt.Errorf("%d problem(s) found", len(result.Problems))
	}
	return nil
}

// Check summarizes every operation in doc and compiles each of its schemas
// with the named engine. Unknown formats and schemas the engine rejects are
// reported as problems rather than errors.
func Check(doc *openapi.Document, engineName string) (*CheckResult, error) {
	registry := formats.NewRegistry()
	eng, err := engine.New(engineName, registry, engine.WithDraft(engine.DraftFor(doc.Version)))
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	result := &CheckResult{
		Source:     doc.Source,
		Version:    doc.Version,
		Title:      doc.Title,
		Engine:     eng.Name(),
		Paths:      doc.Paths(),
		Operations: []OperationSummary{},
	}

	for _, op := range doc.Operations() {
		summary := OperationSummary{
			Method:      op.Method,
			Path:        op.Path,
			OperationID: op.ID,
			Parameters:  len(op.Parameters),
		}
		where := op.Method + " " + op.Path

		declared := map[string]bool{}
		for _, p := range op.Parameters {
			if p.In == openapi.InPath {
				declared[p.Name] = true
			}
			result.Problems = append(result.Problems,
				checkSchema(eng, registry, fmt.Sprintf("%s: %s parameter %q", where, p.In, p.Name), p.Schema)...)
		}
		for _, name := range doc.TemplateParams(op.Path) {
			if !declared[name] {
				result.Problems = append(result.Problems,
					fmt.Sprintf("%s: path parameter %q is not declared", where, name))
			}
		}
		if op.RequestBody != nil {
			for _, mediaType := range sortedKeys(op.RequestBody.Content) {
				summary.RequestTypes = append(summary.RequestTypes, mediaType)
				result.Problems = append(result.Problems,
					checkSchema(eng, registry, fmt.Sprintf("%s: request body %s", where, mediaType), op.RequestBody.Content[mediaType].Schema)...)
			}
		}
		for _, code := range sortedKeys(op.Responses) {
			summary.Responses = append(summary.Responses, code)
			resp := op.Responses[code]
			for _, mediaType := range sortedKeys(resp.Content) {
				result.Problems = append(result.Problems,
					checkSchema(eng, registry, fmt.Sprintf("%s: response %s %s", where, code, mediaType), resp.Content[mediaType].Schema)...)
			}
			for _, name := range sortedKeys(resp.Headers) {
				result.Problems = append(result.Problems,
					checkSchema(eng, registry, fmt.Sprintf("%s: response %s header %q", where, code, name), resp.Headers[name].Schema)...)
			}
		}
		result.Operations = append(result.Operations, summary)
	}

	result.Valid = len(result.Problems) == 0
	return result, nil
}

func checkSchema(eng engine.Engine, registry *formats.Registry, where string, schema map[string]any) []string {
	if schema == nil {
		return nil
	}
	var problems []string
	converted := transcode.Transcode(schema)
	for _, pair := range transcode.Formats(converted) {
		if err := registry.Ensure(pair.Type, pair.Format); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", where, err))
		}
	}
	// The instance is irrelevant; only compilation errors matter here.
	if _, err := eng.Validate(nil, converted); err != nil {
		problems = append(problems, fmt.Sprintf("%s: %v", where, err))
	}
	return problems
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func writeCheckText(result *CheckResult, quiet bool) {
	if !quiet {
		Writef(os.Stderr, "oasguard version: %s\n", oasguard.Version())
		Writef(os.Stderr, "Specification: %s\n", result.Source)
		Writef(os.Stderr, "OAS Version: %s\n", result.Version)
		if result.Title != "" {
			Writef(os.Stderr, "Title: %s\n", result.Title)
		}
		Writef(os.Stderr, "Engine: %s\n", result.Engine)
		Writef(os.Stderr, "Paths: %d\n", len(result.Paths))
		Writef(os.Stderr, "Operations: %d\n\n", len(result.Operations))

		for _, op := range result.Operations {
			Writef(os.Stdout, "%-7s %s", op.Method, op.Path)
			if op.OperationID != "" {
				Writef(os.Stdout, " (%s)", op.OperationID)
			}
			Writef(os.Stdout, " -> %s\n", strings.Join(op.Responses, ", "))
		}
		Writef(os.Stdout, "\n")
	}

	if len(result.Problems) > 0 {
		Writef(os.Stderr, "Problems (%d):\n", len(result.Problems))
		for _, p := range result.Problems {
			Writef(os.Stderr, "  %s\n", p)
		}
		Writef(os.Stderr, "\n")
	}

	if !quiet {
		if result.Valid {
			Writef(os.Stderr, "✓ Document is ready for validation\n")
		} else {
			Writef(os.Stderr, "✗ Check failed: %d problem(s)\n", len(result.Problems))
		}
	}
}
