package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kr/pretty"
	"github.com/llir/llvm/ir"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.minswift.dev/pkg"
)

var (
	emit     = flag.String("emit", "ir", "what to print for each file: tokens, ast, ir or none")
	run      = flag.String("run", "", "function to run after compiling")
	args     = flag.String("args", "", "comma separated Double arguments for -run")
	maxDepth = flag.Int("max-depth", minswift.DefaultMaxDepth, "call depth limit for -run")
	trace    = flag.Bool("trace", false, "print every call made by -run")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file.swift...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	callArgs, err := parseArgs(*args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	files := flag.Args()
	outputs := make([]string, len(files))

	// Each file is an independent compilation with its own context
	var g errgroup.Group
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			out, err := process(file, callArgs)
			if err != nil {
				return err
			}

			outputs[i] = out
			return nil
		})
	}

	err = g.Wait()
	for _, out := range outputs {
		fmt.Print(out)
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

func process(file string, callArgs []float64) (string, error) {
	var out strings.Builder

	switch *emit {
	case "tokens", "ast":
		f, err := os.Open(file)
		if err != nil {
			return "", err
		}
		defer f.Close()

		tokens, err := minswift.Tokenize(f)
		if err != nil {
			return "", errors.Wrap(err, file)
		}

		if *emit == "tokens" {
			for _, tok := range tokens {
				fmt.Fprintln(&out, tok)
			}
			return out.String(), nil
		}

		ast := minswift.ParseProgram(tokens)
		fmt.Fprintf(&out, "%# v\n", pretty.Formatter(ast.Statements))
		return out.String(), errors.Wrap(ast.Err(), file)
	case "ir", "none":
	default:
		return "", errors.Errorf("unknown -emit value %q", *emit)
	}

	mod, err := minswift.NewCompiler().Compile(file)
	if err != nil {
		return "", err
	}

	if *emit == "ir" {
		out.WriteString(mod.String())
	}

	if *run != "" {
		result, err := execute(mod, callArgs)
		if err != nil {
			return out.String(), errors.Wrap(err, file)
		}

		fmt.Fprintf(&out, "%s: %s = %v\n", file, *run, result)
	}

	return out.String(), nil
}

func execute(mod *ir.Module, callArgs []float64) (float64, error) {
	opts := []minswift.EngineOption{minswift.WithMaxDepth(*maxDepth)}
	if *trace {
		opts = append(opts, minswift.WithTrace(os.Stderr))
	}

	engine := minswift.NewEngine(opts...)
	if err := engine.Compile(mod); err != nil {
		return 0, err
	}

	return engine.Run(*run, callArgs...)
}

func parseArgs(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}

	var vals []float64
	for _, field := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad argument %q", field)
		}
		vals = append(vals, v)
	}

	return vals, nil
}

func printError(err error) {
	var list minswift.ErrorList
	if errors.As(err, &list) {
		for _, e := range list {
			printDiagnostic(e)
		}
		return
	}

	printDiagnostic(err)
}

func printDiagnostic(err error) {
	var (
		unexpected *minswift.UnexpectedTokenError
		missing    *minswift.MissingElseError
		undefVar   *minswift.UndefinedVariableError
		undefFunc  *minswift.UndefinedFunctionError
		labels     *minswift.LabelMismatchError
		ret        *minswift.ReturnTypeMismatchError
	)

	switch {
	case errors.As(err, &unexpected):
		fmt.Fprintln(os.Stderr, "Unexpected token:", unexpected.Found, "in", unexpected.Context)
	case errors.As(err, &missing):
		fmt.Fprintln(os.Stderr, "Missing else branch: found", missing.Found)
	case errors.As(err, &undefVar):
		fmt.Fprintln(os.Stderr, "Undefined variable:", undefVar.Name, "in", undefVar.Function)
	case errors.As(err, &undefFunc):
		fmt.Fprintln(os.Stderr, "Undefined function:", undefFunc.Name)
	case errors.As(err, &labels):
		fmt.Fprintln(os.Stderr, "Label mismatch:", labels.Got, "should be", labels.Expected, "calling", labels.Callee)
	case errors.As(err, &ret):
		fmt.Fprintln(os.Stderr, "Return type mismatch:", ret.Function, "returns", ret.Declared, "not", ret.Got)
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
}
