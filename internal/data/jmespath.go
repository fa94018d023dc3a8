package data

import (
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// evaluateString runs expr against data and returns the result when it is a
// non-empty string. Missing fields and non-string results yield "".
func evaluateString(jems JMESPathEvaluator, expr string, data any) (string, error) {
	res, err := jems.Evaluate(expr, data)
	if err != nil {
		return "", err
	}
	s, ok := res.(string)
	if !ok {
		return "", nil
	}
	return strings.TrimSpace(s), nil
}
