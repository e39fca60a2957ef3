package fixture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Load error codes (E001-E099)
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeNoGroups    = "E007" // No groups declared
)

// LoadResult contains the groups loaded from a directory.
type LoadResult struct {
	Groups    []Group
	FileCount int
}

// LoadError represents an error that occurred while loading fixtures.
type LoadError struct {
	Code    string
	Group   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	prefix := e.Code
	if e.Group != "" {
		prefix += ": group " + e.Group
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Load compiles and validates every group declared in the CUE files of dir.
// If mode is LoadModeFailFast, returns on the first error.
func Load(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("fixtures directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing fixtures directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{FileCount: len(cueFiles)}
	groups, errs := compileGroups(value, mode)
	result.Groups = groups
	if len(result.Groups) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoGroups, Message: "no groups found in fixtures"})
	}
	return result, errs
}

// CompileSource compiles and validates the groups of a single CUE source.
func CompileSource(filename, src string, mode LoadMode) ([]Group, []error) {
	value := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: formatCUEError(err).Error()}}
	}
	return compileGroups(value, mode)
}

func compileGroups(value cue.Value, mode LoadMode) ([]Group, []error) {
	var (
		groups []Group
		errs   []error
	)

	groupsVal := value.LookupPath(cue.ParsePath("group"))
	if !groupsVal.Exists() {
		return groups, errs
	}

	iter, err := groupsVal.Fields()
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating groups: %v", err)}}
	}

	for iter.Next() {
		label := iter.Label()
		g, err := CompileGroup(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, label))
			if mode == LoadModeFailFast {
				return groups, errs
			}
			continue
		}

		if verrs := Validate(g); len(verrs) > 0 {
			for _, ve := range verrs {
				errs = append(errs, &LoadError{Code: ve.Code, Group: label, Message: ve.Field + ": " + ve.Message})
			}
			if mode == LoadModeFailFast {
				return groups, errs
			}
			continue
		}
		groups = append(groups, *g)
	}
	return groups, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compile error to a LoadError with position info.
func convertCompileError(err error, group string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeGeneric,
			Group:   group,
			Message: compileErr.Field + ": " + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Group:   group,
		Message: err.Error(),
	}
}
