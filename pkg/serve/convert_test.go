package serve

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/hsmatch/pkg/matcher"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		raw     string
		want    types.Flags
		wantErr bool
	}{
		{"", nil, false},
		{"null", nil, false},
		{"5", types.Scalar(5), false},
		{"[1, 4]", types.Combination{1, 4}, false},
		{"[]", types.Combination{}, false},
		{`"caseless"`, nil, true},
		{"1.5", nil, true},
		{"-1", nil, true},
		{"true", nil, true},
		{`[1, "x"]`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseFlags(json.RawMessage(tt.raw), "flags")
			if tt.wantErr {
				var usage *matcher.UsageError
				require.True(t, errors.As(err, &usage))
				assert.Equal(t, "flags", usage.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileRequest_ExtConstraints(t *testing.T) {
	var p CompilePayload
	require.NoError(t, json.Unmarshal([]byte(`{
		"expressions": [{"expression": "abc", "id": 7, "min_offset": 10}],
		"mode": "block",
		"platform": {"tune": 0, "cpu_features": [4, 8]}
	}`), &p))

	req, err := compileRequest(&p)
	require.NoError(t, err)

	assert.Equal(t, types.ModeBlock, req.Mode)
	require.NotNil(t, req.Platform)
	assert.Equal(t, types.CPUAVX2|types.CPUAVX512, req.Platform.CPUFeatures)
	require.Len(t, req.Expressions, 1)
	assert.Equal(t, uint32(7), *req.Expressions[0].ID)
	assert.Equal(t, uint64(10), *req.Expressions[0].Ext.MinOffset)
	assert.Nil(t, req.Expressions[0].Flags)
}
