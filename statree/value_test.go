package statree_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theonuverse/pasmonux/statree"
)

func TestMarshalPreservesFieldOrder(t *testing.T) {
	v := statree.Object(
		statree.F("zeta", statree.Int(1)),
		statree.F("alpha", statree.Int(2)),
		statree.F("mid", statree.Text("x")),
	)
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.Equal(t, `{"zeta":1,"alpha":2,"mid":"x"}`, string(b))
}

func TestMarshalFloatsAtSinglePrecision(t *testing.T) {
	// A float64 widened from a float32 reading must render at the
	// precision the sensor actually has, not with 17-digit noise.
	tests := []struct {
		in   float64
		want string
	}{
		{556.7999877929688, "556.8"},
		{28.57, "28.57"},
		{0, "0"},
		{-12.5, "-12.5"},
	}
	for _, tt := range tests {
		b, err := json.Marshal(statree.Float(tt.in))
		require.NoError(t, err)
		require.Equal(t, tt.want, string(b), "float %v", tt.in)
	}
}

func TestMarshalScalars(t *testing.T) {
	tests := []struct {
		name string
		v    statree.Value
		want string
	}{
		{"null", statree.Null(), "null"},
		{"bool", statree.Bool(true), "true"},
		{"int", statree.Int(-42), "-42"},
		{"text", statree.Text(`say "hi"`), `"say \"hi\""`},
		{"empty object", statree.Object(), "{}"},
		{"empty array", statree.Array(), "[]"},
		{"nested", statree.Object(
			statree.F("cores", statree.Array(
				statree.Object(
					statree.F("name", statree.Text("cpu0")),
					statree.F("usage", statree.Float(28.57)),
				),
			)),
		), `{"cores":[{"name":"cpu0","usage":28.57}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.v)
			require.NoError(t, err)
			require.Equal(t, tt.want, string(b))
		})
	}
}

func TestGetAndFields(t *testing.T) {
	v := statree.Object(
		statree.F("a", statree.Int(1)),
		statree.F("b", statree.Int(2)),
	)

	got, ok := v.Get("b")
	require.True(t, ok)
	require.True(t, got.Equal(statree.Int(2)))

	_, ok = v.Get("missing")
	require.False(t, ok)

	// Get on a non-object is always a miss.
	_, ok = statree.Int(1).Get("a")
	require.False(t, ok)

	fields := v.Fields()
	require.Len(t, fields, 2)
	require.Equal(t, "a", fields[0].Key)
	require.Equal(t, "b", fields[1].Key)
}

func TestEqual(t *testing.T) {
	a := statree.Object(
		statree.F("x", statree.Float(1.5)),
		statree.F("y", statree.Array(statree.Int(1), statree.Int(2))),
	)
	b := statree.Object(
		statree.F("x", statree.Float(1.5)),
		statree.F("y", statree.Array(statree.Int(1), statree.Int(2))),
	)
	require.True(t, a.Equal(b))

	// Field order matters.
	c := statree.Object(
		statree.F("y", statree.Array(statree.Int(1), statree.Int(2))),
		statree.F("x", statree.Float(1.5)),
	)
	require.False(t, a.Equal(c))

	require.False(t, statree.Int(1).Equal(statree.Float(1)))
	require.True(t, statree.Null().Equal(statree.Null()))
}
