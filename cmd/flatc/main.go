// Command flatc compiles a single source file into a freestanding Windows
// PE32+ executable: lex, parse, type-check, emit x86-64 machine code, link
// symbolically in two passes, and write the final image.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/klauspost/asmfmt"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/flatlang/flatc/internal/ast"
	"github.com/flatlang/flatc/internal/cheader"
	"github.com/flatlang/flatc/internal/codegen"
	"github.com/flatlang/flatc/internal/linker"
	"github.com/flatlang/flatc/internal/parser"
	"github.com/flatlang/flatc/internal/pewriter"
	"github.com/flatlang/flatc/internal/sema"
	"github.com/flatlang/flatc/internal/types"
)

var (
	inputPath  string
	outputPath string
	verbose    bool
	emitAsm    bool
)

var command = &cobra.Command{
	Use:           "flatc",
	Short:         "Compile a source file into a freestanding Windows PE32+ executable",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	command.Flags().StringVarP(&inputPath, "input", "i", "", "source file to compile (required)")
	command.Flags().StringVarP(&outputPath, "output", "o", "", "path to write the compiled executable (required)")
	command.Flags().BoolVarP(&verbose, "verbose", "v", false, "print pipeline stage timings to stderr")
	command.Flags().BoolVar(&emitAsm, "emit-asm", false, "print a disassembly-style listing of the generated code to stderr")
	_ = command.MarkFlagRequired("input")
	_ = command.MarkFlagRequired("output")
}

func main() {
	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// builtins are the scalar types the driver seeds into every compilation's
// type registry (spec §4.3: "Builtin and Struct entries are registered
// externally").
var builtins = []struct {
	name string
	bits int
}{
	{"i8", 8}, {"i16", 16}, {"i32", 32}, {"i64", 64},
	{"u8", 8}, {"u16", 16}, {"u32", 32}, {"u64", 64},
	{"bool", 1}, {"char", 8}, {"pointer", 64},
}

func stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	if verbose {
		fmt.Fprintf(os.Stderr, "flatc: %-12s %v\n", name, time.Since(start))
	}
	return err
}

func run(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("flatc: input file: %w", err)
	}

	src, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("flatc: reading %s: %w", inputPath, err)
	}

	reg := types.NewRegistry(64)
	for _, b := range builtins {
		reg.RegisterBuiltin(b.name, b.bits)
	}

	p := parser.New(src, reg)
	var mod *ast.Module
	if err := stage("parse", func() error {
		var perr error
		mod, perr = p.ParseModule()
		return perr
	}); err != nil {
		return fmt.Errorf("flatc: %w", err)
	}

	if err := stage("sema", func() error {
		_, serr := sema.Analyze(src, reg, mod)
		return serr
	}); err != nil {
		return fmt.Errorf("flatc: %w", err)
	}

	externs := map[string]bool{}
	imports := map[string][]pewriter.ImportFunc{
		"kernel32.dll": {{Symbol: "ExitProcess", Name: "ExitProcess"}},
	}
	var mainSymbol string

	if err := stage("resolve externs", func() error {
		for _, decl := range mod.Decls {
			if decl.Name == "main" && len(decl.Params) == 0 {
				mainSymbol = decl.MangledName
			}
			if !decl.IsExtern() {
				continue
			}
			hdr, herr := cheader.Parse(decl.HeaderPath)
			if herr != nil {
				return fmt.Errorf("%s: %w", decl.Name, herr)
			}
			if !hdr.Resolves(decl.Name) {
				return fmt.Errorf("%s: not declared in %s", decl.Name, decl.HeaderPath)
			}
			externs[decl.MangledName] = true
			imports[hdr.DLL] = append(imports[hdr.DLL], pewriter.ImportFunc{
				Symbol: decl.MangledName,
				Name:   decl.Name,
			})
		}
		return nil
	}); err != nil {
		return fmt.Errorf("flatc: %w", err)
	}
	if mainSymbol == "" {
		return fmt.Errorf("flatc: no zero-argument \"main\" function declared")
	}

	importList := lo.MapToSlice(imports, func(dll string, funcs []pewriter.ImportFunc) pewriter.Import {
		return pewriter.Import{DLL: dll, Funcs: funcs}
	})

	buf := linker.New()
	em := codegen.New(buf, reg, src, externs)
	if emitAsm {
		em.EnableAsmLog()
	}

	walk := func() {
		pewriter.WriteDOSHeader(buf)
		pewriter.WriteNTHeaders(buf, importList)
		pewriter.BeginCode(buf)
		em.EmitModule(mod)
		em.EmitEntryThunk(mainSymbol)
		pewriter.EndCode(buf)
		pewriter.WriteData(buf, nil)
		pewriter.WriteIData(buf, importList)
		pewriter.Finish(buf)
	}

	if err := stage("layout+emit", func() error {
		buf.BeginPass(true)
		walk()
		buf.BeginPass(false)
		walk()
		return nil
	}); err != nil {
		return fmt.Errorf("flatc: %w", err)
	}

	if emitAsm {
		listing := strings.Join(em.AsmListing(), "\n")
		formatted, ferr := asmfmt.Format(strings.NewReader(listing))
		if ferr != nil {
			return fmt.Errorf("flatc: formatting asm listing: %w", ferr)
		}
		fmt.Fprintln(os.Stderr, string(formatted))
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0o755); err != nil {
		return fmt.Errorf("flatc: writing %s: %w", outputPath, err)
	}
	return nil
}
