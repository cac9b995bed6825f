package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/resgate/internal/ir"
)

// ResourcePath is the top-level key under which resources are declared.
const ResourcePath = "resource"

// LoadFiles compiles each CUE file and unifies them into one value.
// Files may live in different directories; imports are not resolved.
func LoadFiles(paths ...string) (cue.Value, error) {
	ctx := cuecontext.New()
	value := ctx.CompileString("{}")
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, fmt.Errorf("read %s: %w", path, err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		value = value.Unify(v)
	}
	if err := value.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return value, nil
}

// CompileAll compiles every resource under the "resource" key.
// Compile errors do not stop the walk; every failing resource is reported.
// Schemas come back sorted by name.
func CompileAll(v cue.Value) ([]*ir.ResourceSchema, []error) {
	resources := v.LookupPath(cue.ParsePath(ResourcePath))
	if !resources.Exists() {
		return nil, nil
	}

	iter, err := resources.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		schemas []*ir.ResourceSchema
		errs    []error
	)
	for iter.Next() {
		schema, err := CompileResource(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", ResourcePath, iter.Label(), err))
			continue
		}
		schemas = append(schemas, schema)
	}

	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas, errs
}

// LoadSchemas loads CUE files, compiles their resources and validates them.
// The first failure is returned; use CompileAll and Validate directly to
// collect every problem.
func LoadSchemas(paths ...string) ([]*ir.ResourceSchema, error) {
	v, err := LoadFiles(paths...)
	if err != nil {
		return nil, err
	}
	schemas, errs := CompileAll(v)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if len(schemas) == 0 {
		return nil, fmt.Errorf("no resources found in %v", baseNames(paths))
	}
	for _, schema := range schemas {
		if verrs := Validate(schema); len(verrs) > 0 {
			return nil, fmt.Errorf("resource %s: %w", schema.Name, verrs[0])
		}
	}
	return schemas, nil
}

func baseNames(paths []string) []string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names
}
