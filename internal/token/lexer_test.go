package token_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flatlang/flatc/internal/token"
)

func TestLexerRoundTrip(t *testing.T) {
	lx := token.New([]byte("fn add(a: i64, b: i64): i64 { return a + b }"))

	want := []token.Kind{
		token.Fn, token.Identifier, token.LParen,
		token.Identifier, token.Colon, token.Identifier, token.Comma,
		token.Identifier, token.Colon, token.Identifier, token.RParen,
		token.Colon, token.Identifier,
		token.LBrace, token.Return, token.Identifier, token.Plus, token.Identifier, token.RBrace,
	}
	for _, k := range want {
		require.Equal(t, k, lx.Peek())
		require.True(t, lx.Match(k))
	}
	require.Equal(t, token.EOF, lx.Peek())
}

func TestLexerStringLiteral(t *testing.T) {
	lx := token.New([]byte(`"kernel32\\\\h" rest`))
	require.True(t, lx.Match(token.String))
	require.Equal(t, `kernel32\\h`, lx.StringLiteral())
	require.True(t, lx.Match(token.Identifier))
	require.Equal(t, "rest", lx.Identifier())
}

func TestLexerLongestMatchOperators(t *testing.T) {
	lx := token.New([]byte("<<= >>= && ||"))
	require.True(t, lx.Match(token.Shl))
	require.True(t, lx.Match(token.Assign))
	require.True(t, lx.Match(token.Shr))
	require.True(t, lx.Match(token.Assign))
	require.True(t, lx.Match(token.AndAnd))
	require.True(t, lx.Match(token.OrOr))
}

func TestLexerKeywordsVsIdentifiers(t *testing.T) {
	lx := token.New([]byte("letter let"))
	require.True(t, lx.Match(token.Identifier))
	require.Equal(t, "letter", lx.Identifier())
	require.True(t, lx.Match(token.Let))
}
