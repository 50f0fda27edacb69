package cmd

import (
	"bytes"
	"testing"

	"strategy-lab/internal/codec"
	"strategy-lab/internal/dto"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeKey(t *testing.T) {
	keys := codec.NewCodec(goValidator.New())

	tests := []struct {
		name    string
		opts    keyEncodeOptions
		want    dto.StrategyKey
		wantErr bool
	}{
		{
			name: "lump sum",
			opts: keyEncodeOptions{buyRule: "SM", mode: 1, quantity: 0.5, stopLoss: -7, sellRule: 1, profit: "4.5"},
			want: "SM_0.0_1_0.500_-7.0_1_4.5",
		},
		{
			name:    "bad profit token",
			opts:    keyEncodeOptions{buyRule: "SM", mode: 1, quantity: 0.5, stopLoss: -7, sellRule: 1, profit: "abc"},
			wantErr: true,
		},
		{
			name:    "positive stop loss",
			opts:    keyEncodeOptions{buyRule: "SM", mode: 1, quantity: 0.5, stopLoss: 7, sellRule: 1, profit: "4.5"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := encodeKey(keys, tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestDecodeKey(t *testing.T) {
	keys := codec.NewCodec(goValidator.New())

	var out bytes.Buffer
	require.NoError(t, decodeKey(&out, keys, "SM_0.0_1_0.500_-7.0_1_4.5"))
	assert.Contains(t, out.String(), `"buy_rule": "SM"`)

	assert.Error(t, decodeKey(&out, keys, "SM_0.0_1"))
}
