package serve

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/praetorian-inc/hsmatch/pkg/matcher"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

func absent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// parseFlags accepts a number (types.Scalar) or an array of numbers
// (types.Combination). Absent or null yields nil.
func parseFlags(raw json.RawMessage, field string) (types.Flags, error) {
	if absent(raw) {
		return nil, nil
	}
	var n uint32
	if err := json.Unmarshal(raw, &n); err == nil {
		return types.Scalar(n), nil
	}
	var list []uint32
	if err := json.Unmarshal(raw, &list); err == nil {
		return types.Combination(list), nil
	}
	return nil, &matcher.UsageError{Field: field, Message: "must be an unsigned 32-bit number or an array of them"}
}

func parseMode(raw json.RawMessage) (types.Mode, error) {
	if absent(raw) {
		return 0, &matcher.UsageError{Field: "mode", Message: "is required"}
	}
	var n uint32
	if err := json.Unmarshal(raw, &n); err == nil {
		return types.Mode(n), nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		m, err := types.ParseMode(name)
		if err != nil {
			return 0, &matcher.UsageError{Field: "mode", Message: err.Error()}
		}
		return m, nil
	}
	return 0, &matcher.UsageError{Field: "mode", Message: "must be a number or a mode name"}
}

func parsePlatform(p *PlatformPayload) (*types.Platform, error) {
	if p == nil {
		return nil, nil
	}
	var out types.Platform
	for _, f := range []struct {
		field string
		raw   json.RawMessage
		dst   *uint32
	}{
		{"platform.tune", p.Tune, &out.Tune},
		{"platform.cpu_features", p.CPUFeatures, &out.CPUFeatures},
		{"platform.reserved1", p.Reserved1, &out.Reserved1},
		{"platform.reserved2", p.Reserved2, &out.Reserved2},
	} {
		v, err := parseFlags(f.raw, f.field)
		if err != nil {
			return nil, err
		}
		*f.dst = types.BitsOf(v)
	}
	return &out, nil
}

// compileRequest converts a compile payload into a matcher request. Shape
// checks beyond field types are left to matcher.Compile.
func compileRequest(p *CompilePayload) (matcher.CompileRequest, error) {
	var req matcher.CompileRequest
	var err error

	if req.Mode, err = parseMode(p.Mode); err != nil {
		return req, err
	}
	if req.Platform, err = parsePlatform(p.Platform); err != nil {
		return req, err
	}
	if req.Flags, err = parseFlags(p.Flags, "flags"); err != nil {
		return req, err
	}
	req.Expression = p.Expression

	if p.Expressions != nil {
		req.Expressions = make([]types.PatternSpec, len(p.Expressions))
		for i, e := range p.Expressions {
			flags, err := parseFlags(e.Flags, fmt.Sprintf("expressions[%d].flags", i))
			if err != nil {
				return req, err
			}
			req.Expressions[i] = types.PatternSpec{
				Expression: e.Expression,
				ID:         e.ID,
				Flags:      flags,
				Ext: &types.ExtConstraints{
					MinOffset: e.MinOffset,
					MaxOffset: e.MaxOffset,
					MinLength: e.MinLength,
				},
			}
		}
	}
	return req, nil
}
