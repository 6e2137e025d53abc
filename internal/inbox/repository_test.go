package inbox

import (
	"errors"
	"net/url"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorableText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "plain", want: "plain"},
		{in: "a\x00b", want: "a�b"},
		{in: "\x00\x00", want: "��"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, storableText(tt.in))
	}
}

func TestMarshalMap_NulBytes(t *testing.T) {
	q, err := url.ParseQuery("q=a%00b&k%00=v")
	require.NoError(t, err)

	got, err := marshalMap(NormalizeQuery(q))
	require.NoError(t, err)
	assert.NotContains(t, got, `\u0000`)
	assert.JSONEq(t, `{"q":"a�b","k�":"v"}`, got)

	got, err = marshalMap(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", got)
}

func TestClassifyWriteError(t *testing.T) {
	assert.ErrorIs(t, classifyWriteError("create", &pq.Error{Code: "23503"}), ErrBinMissing)

	err := classifyWriteError("create", &pq.Error{Code: "22P05", Message: "unsupported Unicode escape sequence"})
	assert.ErrorIs(t, err, ErrUnstorable)

	down := errors.New("connection reset by peer")
	err = classifyWriteError("create", down)
	assert.ErrorIs(t, err, down)
	assert.NotErrorIs(t, err, ErrUnstorable)
}
