package graph

import (
	"fmt"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/docregistry/apiserver/internal/services"
)

// Date is a calendar date without time of day, written as YYYY-MM-DD.
var Date = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "Date",
	Description: "Calendar date in YYYY-MM-DD format.",
	Serialize: func(value interface{}) interface{} {
		switch v := value.(type) {
		case time.Time:
			return v.Format(time.DateOnly)
		case *time.Time:
			if v == nil {
				return nil
			}
			return v.Format(time.DateOnly)
		}
		return nil
	},
	ParseValue: func(value interface{}) interface{} {
		s, ok := value.(string)
		if !ok {
			return nil
		}
		return parseDate(s)
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		s, ok := valueAST.(*ast.StringValue)
		if !ok {
			return nil
		}
		return parseDate(s.Value)
	},
})

func parseDate(s string) interface{} {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil
	}
	return t
}

func argInt(args map[string]interface{}, name string) int {
	v, _ := args[name].(int)
	return v
}

func argString(args map[string]interface{}, name string) string {
	v, _ := args[name].(string)
	return v
}

func argBool(args map[string]interface{}, name string) bool {
	v, _ := args[name].(bool)
	return v
}

func argIntPtr(args map[string]interface{}, name string) *int {
	v, ok := args[name].(int)
	if !ok {
		return nil
	}
	return &v
}

func argDate(args map[string]interface{}, name string) *time.Time {
	v, ok := args[name].(time.Time)
	if !ok {
		return nil
	}
	return &v
}

func argObject(args map[string]interface{}, name string) map[string]interface{} {
	v, _ := args[name].(map[string]interface{})
	if v == nil {
		return map[string]interface{}{}
	}
	return v
}

// page converts 1-based page numbers into an offset.
func page(args map[string]interface{}) (offset, limit int) {
	limit = argInt(args, "limit")
	if limit <= 0 {
		limit = 10
	}
	p := argInt(args, "page")
	if p < 1 {
		p = 1
	}
	return (p - 1) * limit, limit
}

func requireDate(args map[string]interface{}, name string) (time.Time, error) {
	d := argDate(args, name)
	if d == nil {
		return time.Time{}, fmt.Errorf("%w: %s must be a date in YYYY-MM-DD format", services.ErrValidation, name)
	}
	return *d, nil
}
