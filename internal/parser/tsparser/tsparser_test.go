package tsparser_test

import (
	"testing"

	p "github.com/keinsell/zkk/internal/parser/tsparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_TSParser_Features_TS(t *testing.T) {
	code := `
import { readFile } from "fs"
interface I { x: number }
type Alias = string
export enum E { A, B }
export class C {
  m(): void { }
}
export function f(x: number): number { return x }
const v = 1
`
	features, err := p.New().Features("typescript", []byte(code))
	require.NoError(t, err)

	for _, want := range []string{
		"import:fs",
		"interface:I",
		"type:Alias",
		"enum:E",
		"class:C",
		"method:m",
		"function:f",
		"variable:v",
	} {
		assert.Contains(t, features, want)
	}
}

func Test_TSParser_Features_TSX(t *testing.T) {
	code := `export function Component(): JSX.Element { return <div/> }`
	features, err := p.New().Features("tsx", []byte(code))
	require.NoError(t, err)
	assert.Equal(t, []string{"function:Component"}, features)
}

func Test_TSParser_Features_Dedup(t *testing.T) {
	code := "function f() {}\nfunction f() {}\n"
	features, err := p.New().Features("ts", []byte(code))
	require.NoError(t, err)
	assert.Equal(t, []string{"function:f"}, features)
}

func Test_TSParser_UnsupportedLanguage(t *testing.T) {
	parser := p.New()
	assert.False(t, parser.Supports("python"))
	features, err := parser.Features("python", []byte("def f(): pass"))
	require.NoError(t, err)
	assert.Nil(t, features)
}

func Test_LanguageForPath(t *testing.T) {
	assert.Equal(t, "ts", p.LanguageForPath("/a/b.ts"))
	assert.Equal(t, "tsx", p.LanguageForPath("/a/b.tsx"))
	assert.Equal(t, "", p.LanguageForPath("/a/b.d.ts"))
	assert.Equal(t, "js", p.LanguageForPath("b.js"))
	assert.Equal(t, "", p.LanguageForPath("notes.md"))
}
