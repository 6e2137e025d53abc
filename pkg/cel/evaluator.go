package cel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// EventFields is the view of a captured request that expressions see.
type EventFields struct {
	ID        string
	Method    string
	Path      string
	Query     map[string]string
	Headers   map[string]string
	Body      string
	SizeBytes int
	RemoteIP  string
	CreatedAt time.Time
}

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("method", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("query", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("body", cel.StringType),
		cel.Variable("size_bytes", cel.IntType),
		cel.Variable("remote_ip", cel.StringType),
		cel.Variable("created_at", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateFilterExpression(expression string) error {
	_, err := e.compileBool(expression)
	return err
}

func (e *Evaluator) compileBool(expression string) (*cel.Ast, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	return ast, nil
}

// Filter is a compiled boolean expression, safe for concurrent use.
type Filter struct {
	expression string
	program    cel.Program
}

func (e *Evaluator) CompileFilter(expression string) (*Filter, error) {
	ast, err := e.compileBool(expression)
	if err != nil {
		return nil, err
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Filter{expression: expression, program: program}, nil
}

func (f *Filter) String() string {
	return f.expression
}

// Match reports whether the event satisfies the expression. Missing map
// keys are evaluation errors; guard them with `"k" in headers`.
func (f *Filter) Match(ctx context.Context, ev EventFields) (bool, error) {
	result, _, err := f.program.ContextEval(ctx, activation(ev))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

func activation(ev EventFields) map[string]interface{} {
	query := ev.Query
	if query == nil {
		query = map[string]string{}
	}
	headers := ev.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	return map[string]interface{}{
		"id":         ev.ID,
		"method":     ev.Method,
		"path":       ev.Path,
		"query":      query,
		"headers":    headers,
		"body":       ev.Body,
		"size_bytes": int64(ev.SizeBytes),
		"remote_ip":  ev.RemoteIP,
		"created_at": ev.CreatedAt,
	}
}
