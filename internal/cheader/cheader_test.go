package cheader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flatlang/flatc/internal/cheader"
)

func writeHeader(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "winapi.h")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestParseResolvesPrototypeAndDLL(t *testing.T) {
	path := writeHeader(t, `#pragma import(kernel32.dll)
void ExitProcess(int code);
`)

	hdr, err := cheader.Parse(path)
	require.NoError(t, err)
	require.Equal(t, "kernel32.dll", hdr.DLL)
	require.True(t, hdr.Resolves("ExitProcess"))
	require.False(t, hdr.Resolves("NotDeclared"))
}

func TestParseDefaultsToKernel32WithoutPragma(t *testing.T) {
	path := writeHeader(t, `void Sleep(int ms);
`)

	hdr, err := cheader.Parse(path)
	require.NoError(t, err)
	require.Equal(t, "kernel32.dll", hdr.DLL)
	require.True(t, hdr.Resolves("Sleep"))
}

func TestParseFunctionDefinitionBody(t *testing.T) {
	path := writeHeader(t, `#pragma import(user32.dll)
static inline int Identity(int x) { return x; }
`)

	hdr, err := cheader.Parse(path)
	require.NoError(t, err)
	require.Equal(t, "user32.dll", hdr.DLL)
	require.True(t, hdr.Resolves("Identity"))
}
