package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskadmin/internal/domain"
)

func TestBindNamedRewritesReferences(t *testing.T) {
	params := NewParams(Arg("Code", "C1"), Arg("Name", "Acme"))
	text, args, err := bindNamed(`SELECT * FROM clients WHERE client_code = @code AND (name = @Name OR note = '@Name') -- @Ignored
AND client_code <> @Code AND @@session.sql_mode IS NOT NULL`, params, true)
	require.NoError(t, err)

	assert.Equal(t, `SELECT * FROM clients WHERE client_code = ? AND (name = ? OR note = '@Name') -- @Ignored
AND client_code <> ? AND @@session.sql_mode IS NOT NULL`, text)
	assert.Equal(t, []any{"C1", "Acme", "C1"}, args)
}

func TestBindNamedSkipsEscapedQuotes(t *testing.T) {
	text, args, err := bindNamed(`SELECT 'it''s @Name', @Name`, NewParams(Arg("Name", "x")), false)
	require.NoError(t, err)
	assert.Equal(t, `SELECT 'it''s @Name', ?`, text)
	assert.Equal(t, []any{"x"}, args)
}

func TestBindNamedRejectsUnknownAndUnreferenced(t *testing.T) {
	_, _, err := bindNamed(`SELECT @Missing`, NewParams(), false)
	assert.True(t, domain.IsInvalidArgument(err), "unknown reference: %v", err)

	_, _, err = bindNamed(`SELECT 1`, NewParams(Arg("Unused", 1)), false)
	assert.True(t, domain.IsInvalidArgument(err), "unreferenced input: %v", err)

	var n int64
	_, _, err = bindNamed(`SELECT @RowsAffected`, NewParams(Out(RowsAffectedParam, &n)), false)
	assert.True(t, domain.IsInvalidArgument(err), "output used as value: %v", err)
}

func TestParamsValidate(t *testing.T) {
	var n int64
	var s string

	cases := []struct {
		name   string
		params Params
		ok     bool
	}{
		{"valid", NewParams(Arg("Code", "C1").As(TypeString), Out("StatusMsg", &s), Out(RowsAffectedParam, &n)), true},
		{"duplicate ignores case", NewParams(Arg("Code", "a"), Arg("CODE", "b")), false},
		{"bad name", NewParams(Arg("1code", "a")), false},
		{"empty name", NewParams(Arg("", "a")), false},
		{"type mismatch", NewParams(Arg("Limit", "ten").As(TypeFloat)), false},
		{"nil input matches any type", NewParams(Arg("Limit", nil).As(TypeFloat)), true},
		{"output without placeholder", NewParams(Out("StatusMsg", nil)), false},
		{"output placeholder not pointer", NewParams(Out("StatusMsg", s)), false},
		{"rows affected needs integer", NewParams(Out(RowsAffectedParam, &s)), false},
		{"identity needs integer", NewParams(Identity("Id", &s)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.params.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, domain.IsInvalidArgument(err), "expected invalid argument, got %v", err)
		})
	}
}

func TestParamsAddDoesNotAlias(t *testing.T) {
	base := make(Params, 0, 4)
	base = append(base, Arg("A", 1))
	one := base.Add(Arg("B", 2))
	two := base.Add(Arg("C", 3))

	_, ok := one.Lookup("b")
	assert.True(t, ok)
	_, ok = one.Lookup("C")
	assert.False(t, ok)
	assert.Len(t, two, 2)
}

func TestInOutSendsCurrentValue(t *testing.T) {
	v := int64(7)
	p := InOut("Counter", &v)
	assert.Equal(t, int64(7), p.Value)
	assert.Len(t, NewParams(p).Inputs(), 1)
	assert.Len(t, NewParams(p).Outputs(), 1)
}

func TestBackslashInLiteralDependsOnDialect(t *testing.T) {
	params := NewParams(Arg("P", "x"))

	text, args, err := NewSQLite(nil).Render(Text("path", `SELECT 'C:\' || @P`, params...))
	require.NoError(t, err)
	assert.Equal(t, `SELECT 'C:\' || ?`, text)
	assert.Equal(t, []any{"x"}, args)

	text, args, err = MySQL{}.Render(Text("path", `SELECT CONCAT('C:\\', @P), 'it\'s @P'`, params...))
	require.NoError(t, err)
	assert.Equal(t, `SELECT CONCAT('C:\\', ?), 'it\'s @P'`, text)
	assert.Equal(t, []any{"x"}, args)
}

func TestConstructorsSetDirection(t *testing.T) {
	var n, id, v int64
	cases := []struct {
		p    Parameter
		want Direction
		in   bool
		out  bool
	}{
		{Arg("A", 1), DirIn, true, false},
		{Out("B", &n), DirOut, false, true},
		{InOut("C", &v), DirInOut, true, true},
		{Identity("D", &id), DirOut, false, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.p.Direction, tc.p.Name)
		assert.Equal(t, tc.in, tc.p.isInput(), tc.p.Name)
		assert.Equal(t, tc.out, tc.p.isOutput(), tc.p.Name)
	}
	assert.Equal(t, "inout", DirInOut.String())
	assert.Error(t, NewParams(Parameter{Name: "X", Direction: Direction(9)}).Validate())
}
