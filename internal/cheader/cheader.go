// Package cheader resolves the `extern "C" from "path.h"` declaration
// prefix (SPEC_FULL §11): it runs modernc.org/cc/v4's C preprocessor and
// parser over a named header and reports which function names it actually
// declares, plus the DLL those functions should be imported from. The
// compiler's own type system plays no part here — a source-level extern
// declaration still states its parameters and result type in this
// language's own grammar; cheader only confirms the name is real and
// supplies the DLL binding the import table needs.
package cheader

import (
	"fmt"
	"os"
	"regexp"

	"modernc.org/cc/v4"
)

// Header is the result of parsing one C header file.
type Header struct {
	Path      string
	DLL       string
	Functions map[string]bool
}

// pragmaImport recognizes a `#pragma import(dllname)` line anywhere in the
// header, the one convention this extension uses to name the DLL a
// header's functions are imported from.
var pragmaImport = regexp.MustCompile(`#pragma\s+import\(\s*"?([\w.]+)"?\s*\)`)

// Parse reads and parses the header at path, collecting every top-level
// function name it declares (as a bodiless prototype) or defines (as a
// static inline stub, which headers sometimes use instead). Absent a
// #pragma import line, the DLL defaults to kernel32.dll — the only DLL
// the process entry thunk itself depends on (codegen.EmitEntryThunk).
func Parse(path string) (*Header, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cheader: reading %s: %w", path, err)
	}

	dll := "kernel32.dll"
	if m := pragmaImport.FindSubmatch(src); m != nil {
		dll = string(m[1])
	}

	cfg, err := cc.NewConfig("windows", "amd64")
	if err != nil {
		return nil, fmt.Errorf("cheader: configuring C parser: %w", err)
	}
	tu, err := cc.Parse(cfg, []cc.Source{
		{Name: "<predefined>", Value: cfg.Predefined},
		{Name: "<builtin>", Value: cc.Builtin},
		{Name: path, Value: string(src)},
	})
	if err != nil {
		return nil, fmt.Errorf("cheader: parsing %s: %w", path, err)
	}

	functions := map[string]bool{}
	for list := tu.TranslationUnit; list != nil; list = list.TranslationUnit {
		decl := list.ExternalDeclaration
		if decl.Position().Filename != path {
			continue
		}
		switch decl.Case {
		case cc.ExternalDeclarationFuncDef:
			if name, ok := funcDefName(decl.FunctionDefinition); ok {
				functions[name] = true
			}
		case cc.ExternalDeclarationDecl:
			for _, name := range declFuncNames(decl.Declaration) {
				functions[name] = true
			}
		}
	}

	return &Header{Path: path, DLL: dll, Functions: functions}, nil
}

func funcDefName(fd *cc.FunctionDefinition) (string, bool) {
	if fd == nil || fd.Declarator == nil {
		return "", false
	}
	dd := fd.Declarator.DirectDeclarator
	if dd == nil || dd.Case != cc.DirectDeclaratorFuncParam {
		return "", false
	}
	return dd.DirectDeclarator.Token.SrcStr(), true
}

// declFuncNames extracts every function-prototype name from a plain
// (bodiless) top-level declaration — the form a header's prototypes
// actually take, as opposed to the function-definition shape FuncDef
// covers. Non-function declarators (a plain variable or typedef) are
// skipped.
func declFuncNames(d *cc.Declaration) []string {
	var names []string
	if d == nil {
		return names
	}
	for idl := d.InitDeclaratorList; idl != nil; idl = idl.InitDeclaratorList {
		id := idl.InitDeclarator
		if id == nil || id.Declarator == nil {
			continue
		}
		dd := id.Declarator.DirectDeclarator
		if dd == nil || dd.Case != cc.DirectDeclaratorFuncParam {
			continue
		}
		names = append(names, dd.DirectDeclarator.Token.SrcStr())
	}
	return names
}

// Resolves reports whether h declares a function named name — used to
// verify a source-level extern declaration actually names something the
// header provides, rather than silently trusting the DLL default.
func (h *Header) Resolves(name string) bool { return h.Functions[name] }
