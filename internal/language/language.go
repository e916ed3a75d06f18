// Package language wraps the gqlparser primitives the handler needs for
// looking at a request document before it reaches the executor.
package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

type (
	QueryDocument       = ast.QueryDocument
	OperationDefinition = ast.OperationDefinition
)

type Operation = ast.Operation

const (
	Query        Operation = ast.Query
	Mutation     Operation = ast.Mutation
	Subscription Operation = ast.Subscription
)

// ParseQuery parses a GraphQL executable document.
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// OperationType reports the type of the operation the request would run.
// An anonymous single operation is selected when name is empty; the second
// return value is false when no operation matches.
func OperationType(doc *QueryDocument, name string) (Operation, bool) {
	op := doc.Operations.ForName(name)
	if op == nil && name == "" && len(doc.Operations) == 1 {
		op = doc.Operations[0]
	}
	if op == nil {
		return "", false
	}
	return op.Operation, true
}
