package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/resgate/internal/compiler"
	"github.com/roach88/resgate/internal/ir"
)

// Error codes reported by the CLI itself. Compile and validation problems
// use the compiler's E1xx codes, failed calls use ir error codes.
const (
	ErrCodeGeneric     = "E001" // unclassified failure
	ErrCodeScanError   = "E002" // specs directory could not be walked
	ErrCodeNoFiles     = "E003" // no .cue files in the specs directory
	ErrCodeLoadFailed  = "E004" // store or runtime setup failed
	ErrCodeNotFound    = "E005" // path not found
	ErrCodeBuildFailed = "E006" // CUE evaluation failed
	ErrCodeWriteFailed = "E007" // output file could not be written
	ErrCodeBadInput    = "E008" // malformed target, --args or --opts
)

// LoadMode controls how compile errors are collected.
type LoadMode int

const (
	// LoadModeFailFast stops at the first resource that does not compile.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll compiles every resource and reports each failure.
	LoadModeCollectAll
)

// LoadResult is what a specs directory compiled to.
type LoadResult struct {
	Schemas   []*ir.ResourceSchema
	Files     []string
	FileCount int
}

// LoadError is a specs loading failure with its CLI error code.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs unifies every .cue file under dir and compiles the resources
// declared under the "resource" key. Schemas are compiled, not validated;
// see ValidateSchemas.
//
// A nil result means the directory itself could not be loaded and the
// first error says why.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	case err != nil:
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	case !info.IsDir():
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	value, err := compiler.LoadFiles(files...)
	if err != nil {
		return nil, []error{convertCompileError(err, ErrCodeBuildFailed)}
	}

	schemas, compileErrs := compiler.CompileAll(value)
	result := &LoadResult{Schemas: schemas, Files: files, FileCount: len(files)}

	var errs []error
	for _, err := range compileErrs {
		errs = append(errs, convertCompileError(err, ErrCodeGeneric))
		if mode == LoadModeFailFast {
			return result, errs
		}
	}
	if len(schemas) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no resources found in specs"})
	}
	return result, errs
}

// FindCUEFiles returns every .cue file under dir, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// convertCompileError turns a compiler error into a LoadError, keeping the
// "resource.<Name>: " prefix added by CompileAll. The position is printed
// by LoadError itself.
func convertCompileError(err error, fallback string) *LoadError {
	var compileErr *compiler.CompileError
	if !errors.As(err, &compileErr) {
		return &LoadError{Code: fallback, Message: err.Error()}
	}
	prefix := strings.TrimSuffix(err.Error(), compileErr.Error())
	return &LoadError{
		Code:    MapFieldToErrorCode(compileErr.Field),
		Message: prefix + compileErr.Field + ": " + compileErr.Message,
		Pos:     compileErr.Pos,
	}
}

// MapFieldToErrorCode maps the field path of a compile error to the
// compiler code for the same problem class.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "fields":
		return compiler.ErrNoFields
	case field == "type":
		return compiler.ErrInvalidFieldType
	case field == "default":
		return compiler.ErrInvalidDefault
	case field == "cue":
		return ErrCodeBuildFailed
	case strings.HasPrefix(field, "actions.") && strings.HasSuffix(field, ".kind"):
		return compiler.ErrInvalidActionKind
	case strings.HasPrefix(field, "calculations.") && strings.HasSuffix(field, ".expr"):
		return compiler.ErrInvalidExpression
	default:
		return ErrCodeGeneric
	}
}
