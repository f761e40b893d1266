package store

import "github.com/canonkv/canonkv/internal/typegraph"

//go:generate mockgen -destination=collaborators_mock_test.go -package=store . TypeGraphParser,ValueTextCodec

// TypeGraphParser is the IDL-parsing collaborator (spec §6): given IDL
// source text, it returns the parsed type graph. Parsing the grammar
// itself is explicitly out of scope for this module (spec §1) — callers
// inject a real parser; tests inject a mock built with go.uber.org/mock.
type TypeGraphParser interface {
	Parse(idlText string) (*typegraph.Graph, error)
}

// ValueTextCodec is the text value parser/printer collaborator (spec §6):
// converts between the human-readable value syntax and a RuntimeValue.
type ValueTextCodec interface {
	ParseValue(g *typegraph.Graph, ref typegraph.TypeRef, text string) (typegraph.Value, error)
	PrintValue(g *typegraph.Graph, ref typegraph.TypeRef, v typegraph.Value) (string, error)
}
