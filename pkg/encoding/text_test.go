package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"empty", nil, ""},
		{"utf8 passes through", []byte("  José "), "José"},
		{"latin1 is decoded", []byte{'J', 'o', 's', 0xe9}, "José"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToUTF8(tt.in))
		})
	}
}

func TestNormalize(t *testing.T) {
	decomposed := "Jose\u0301"
	assert.Equal(t, "José", Normalize(decomposed))
	assert.Equal(t, Normalize("José"), Normalize(decomposed))
}
