package queryfilter

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventColumns = map[string]string{
	"title":    "title",
	"category": "category",
	"date":     "date",
}

func TestParseAndCompileEqual(t *testing.T) {
	expr, err := Parse(`equal(title, "Title-1")`)
	require.NoError(t, err)
	assert.Equal(t, OpEqual, expr.Op)

	sql, args, err := Compile(expr, eventColumns, 2)
	require.NoError(t, err)
	assert.Equal(t, "title = $2", sql)
	assert.Equal(t, []interface{}{"Title-1"}, args)
}

func TestCompileNested(t *testing.T) {
	expr, err := Parse(`AND(EQUAL(category,'work'), OR(GREATER_THAN(date,"2024-01-01"), NOT(LESS_THAN(date, 2023-06-01))))`)
	require.NoError(t, err)

	sql, args, err := Compile(expr, eventColumns, 1)
	require.NoError(t, err)
	assert.Equal(t, "(category = $1) AND ((date > $2) OR (NOT (date < $3)))", sql)
	assert.Equal(t, []interface{}{"work", "2024-01-01", "2023-06-01"}, args)
}

func TestQuotedValueKeepsSeparators(t *testing.T) {
	expr, err := Parse(`EQUAL(title,"a, b) \"c\"")`)
	require.NoError(t, err)
	assert.Equal(t, `a, b) "c"`, expr.Value)
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		``,
		`EQUAL(title)`,
		`LIKE(title,"x")`,
		`AND(EQUAL(title,"x"))`,
		`NOT(EQUAL(title,"x"),EQUAL(title,"y"))`,
		`EQUAL(title,"x"`,
		`EQUAL(title,"x") trailing`,
		`EQUAL(title,"unterminated)`,
	}
	for _, in := range inputs {
		_, err := Parse(in)
		var syntaxErr *SyntaxError
		assert.True(t, errors.As(err, &syntaxErr), in)
	}
}

func TestParseNestingLimit(t *testing.T) {
	nest := func(depth int) string {
		return strings.Repeat("NOT(", depth-1) + `EQUAL(title,"x")` + strings.Repeat(")", depth-1)
	}

	_, err := Parse(nest(MaxDepth))
	require.NoError(t, err)

	_, err = Parse(nest(MaxDepth + 1))
	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Contains(t, syntaxErr.Msg, "nested deeper")

	_, err = Parse(nest(100000))
	assert.Error(t, err)
}

func TestCompileRejectsUnknownField(t *testing.T) {
	expr, err := Parse(`EQUAL(password_hash,"x")`)
	require.NoError(t, err)
	_, _, err = Compile(expr, eventColumns, 1)
	var fieldErr *FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "password_hash", fieldErr.Field)
}
