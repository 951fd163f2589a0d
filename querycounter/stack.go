package querycounter

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

const maxStackDepth = 64

// Frame describes one call site of a captured stack.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

func (f Frame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line)
}

// Stack is an ordered sequence of frames, innermost first.
type Stack []Frame

// dispatchPackages hold the frames between the caller and the execution hook:
// database drivers, database/sql, query builders and the Go runtime.
var dispatchPackages = []string{
	"runtime",
	"database/sql",
	"github.com/jmoiron/sqlx",
	"github.com/jackc/pgx/v5",
	"github.com/jackc/puddle/v2",
	"github.com/lib/pq",
	"github.com/qustavo/sqlhooks/v2",
	"github.com/doug-martin/goqu/v9",
	"modernc.org/sqlite",
}

// hookPackages are the packages of this module which dispatch statements into the engine.
var hookPackages = []string{"sqlhook", "pgxhook"}

var selfPackages = resolveSelfPackages()

func resolveSelfPackages() map[string]struct{} {
	corePackage := reflect.TypeOf(Frame{}).PkgPath()

	packages := map[string]struct{}{corePackage: {}}
	for _, hook := range hookPackages {
		packages[corePackage+"/"+hook] = struct{}{}
	}

	return packages
}

// CaptureStack returns the call stack of the current statement execution according to config.
//
// Nothing is walked if traceback is disabled, regardless of heuristics.
// Frames of the engine, its hook packages and the database dispatch layers are excluded.
// With heuristics also enabled the result only keeps frames matching one of the heuristic paths,
// which may leave it empty.
func CaptureStack(config AnalysisConfig) Stack {
	if !config.captureEnabled() {
		return nil
	}

	stack := callerStack()

	if config.HeuristicsEnabled {
		return FilterFrames(stack, config.HeuristicPaths)
	}

	return stack
}

// FilterFrames keeps the frames whose file path contains at least one of paths (case-sensitive).
func FilterFrames(stack Stack, paths []string) Stack {
	filtered := make(Stack, 0)

	for _, frame := range stack {
		for _, path := range paths {
			if strings.Contains(frame.File, path) {
				filtered = append(filtered, frame)
				break
			}
		}
	}

	return filtered
}

func callerStack() Stack {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	stack := make(Stack, 0, n)

	for {
		frame, more := frames.Next()

		if frame.Function != "" && !isExcludedFunction(frame.Function) {
			stack = append(stack, Frame{
				File:     frame.File,
				Line:     frame.Line,
				Function: frame.Function,
			})
		}

		if !more {
			break
		}
	}

	return stack
}

func isExcludedFunction(function string) bool {
	pkg := packageOf(function)

	if _, ok := selfPackages[pkg]; ok {
		return true
	}

	for _, dispatch := range dispatchPackages {
		if pkg == dispatch || strings.HasPrefix(pkg, dispatch+"/") {
			return true
		}
	}

	return false
}

// packageOf extracts the import path from a fully qualified function name,
// e.g. "github.com/a/b/pkg.(*T).Method.func1" -> "github.com/a/b/pkg".
func packageOf(function string) string {
	lastSlash := strings.LastIndexByte(function, '/')

	dot := strings.IndexByte(function[lastSlash+1:], '.')
	if dot < 0 {
		return function
	}

	return function[:lastSlash+1+dot]
}
