package rule

import (
	"fmt"
	"io/fs"
	"math"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/praetorian-inc/hsmatch/pkg/matcher"
	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// Loader reads pattern-set YAML files.
type Loader struct {
	fs fs.FS // built-in sets
}

// NewLoader creates a loader with the built-in pattern sets.
func NewLoader() *Loader {
	return &Loader{fs: builtinSetsFS}
}

// NewLoaderWithFS creates a loader whose built-in sets live under sets/ in
// fsys.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{fs: fsys}
}

// LoadFile loads a pattern set from a YAML file path.
func (l *Loader) LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return l.Load(data)
}

// Builtin loads the built-in set with the given name.
func (l *Loader) Builtin(name string) (*Set, error) {
	data, err := fs.ReadFile(l.fs, path.Join(setsDir, name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("unknown built-in pattern set %q: %w", name, err)
	}
	return l.Load(data)
}

// BuiltinNames lists the built-in sets in name order.
func (l *Loader) BuiltinNames() ([]string, error) {
	entries, err := fs.ReadDir(l.fs, setsDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && path.Ext(e.Name()) == ".yaml" {
			names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load parses a pattern set from YAML bytes. Shape errors are returned as
// *matcher.UsageError naming the offending field.
func (l *Loader) Load(data []byte) (*Set, error) {
	var ys yamlSet
	if err := yaml.Unmarshal(data, &ys); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	set := &Set{Name: ys.Name, Description: ys.Description}

	mode, err := parseMode(&ys.Mode)
	if err != nil {
		return nil, err
	}
	set.Mode = mode

	if ys.Platform != nil {
		if set.Platform, err = parsePlatform(ys.Platform); err != nil {
			return nil, err
		}
	}

	hasList := ys.Expressions.Kind != 0
	switch {
	case ys.Expression != nil && hasList:
		return nil, usage("", "specify only one of 'expression' or 'expressions'")
	case ys.Expression == nil && !hasList:
		return nil, usage("", "specify 'expression' or 'expressions'")
	case hasList && ys.Flags.Kind != 0:
		return nil, usage("flags", "applies only to 'expression'; set flags per pattern")
	}

	if ys.Expression != nil {
		expr := stripExtended(*ys.Expression, ys.Extended)
		set.Expression = &expr
		if set.Flags, err = parseBits(&ys.Flags, "flags", types.FlagByName); err != nil {
			return nil, err
		}
		return set, nil
	}

	if ys.Expressions.Kind != yaml.SequenceNode {
		return nil, usage("expressions", "must be a list")
	}
	set.Patterns = make([]Pattern, 0, len(ys.Expressions.Content))
	for i, n := range ys.Expressions.Content {
		p, err := parsePattern(n, fmt.Sprintf("expressions[%d]", i), ys.Extended)
		if err != nil {
			return nil, err
		}
		set.Patterns = append(set.Patterns, p)
	}
	return set, nil
}

func parsePattern(n *yaml.Node, field string, extended bool) (Pattern, error) {
	switch {
	case n.Kind == yaml.ScalarNode && n.ShortTag() == "!!str":
		return Pattern{PatternSpec: types.PatternSpec{Expression: stripExtended(n.Value, extended)}}, nil
	case n.Kind != yaml.MappingNode:
		return Pattern{}, usage(field, "must be a string or a mapping")
	}

	var yp yamlPattern
	if err := n.Decode(&yp); err != nil {
		return Pattern{}, usage(field, err.Error())
	}
	if yp.Extended != nil {
		extended = *yp.Extended
	}

	p := Pattern{
		Name:             yp.Name,
		PatternSpec:      types.PatternSpec{Expression: stripExtended(yp.Expression, extended)},
		Examples:         yp.Examples,
		NegativeExamples: yp.NegativeExamples,
	}

	var err error
	if yp.ID.Kind != 0 {
		id, err := parseUint(&yp.ID, field+".id", math.MaxUint32)
		if err != nil {
			return Pattern{}, err
		}
		p.ID = types.Uint32(uint32(id))
	}
	if p.Flags, err = parseBits(&yp.Flags, field+".flags", types.FlagByName); err != nil {
		return Pattern{}, err
	}

	ext := &types.ExtConstraints{}
	for _, c := range []struct {
		node *yaml.Node
		name string
		dst  **uint64
	}{
		{&yp.MinOffset, "min_offset", &ext.MinOffset},
		{&yp.MaxOffset, "max_offset", &ext.MaxOffset},
		{&yp.MinLength, "min_length", &ext.MinLength},
	} {
		if c.node.Kind == 0 {
			continue
		}
		v, err := parseUint(c.node, field+"."+c.name, math.MaxUint64)
		if err != nil {
			return Pattern{}, err
		}
		*c.dst = types.Uint64(v)
	}
	if !ext.Empty() {
		p.Ext = ext
	}
	return p, nil
}

func parseMode(n *yaml.Node) (types.Mode, error) {
	switch {
	case n.Kind == 0:
		return 0, nil
	case n.Kind == yaml.ScalarNode && n.ShortTag() == "!!int":
		v, err := parseUint(n, "mode", math.MaxUint32)
		return types.Mode(v), err
	case n.Kind == yaml.ScalarNode && n.ShortTag() == "!!str":
		m, err := types.ParseMode(n.Value)
		if err != nil {
			return 0, usage("mode", err.Error())
		}
		return m, nil
	}
	return 0, usage("mode", "must be a mode name or an integer")
}

func parsePlatform(yp *yamlPlatform) (*types.Platform, error) {
	p := &types.Platform{}
	for _, f := range []struct {
		node  *yaml.Node
		name  string
		dst   *uint32
		names func(string) (uint32, bool)
	}{
		{&yp.Tune, "platform.tune", &p.Tune, nil},
		{&yp.CPUFeatures, "platform.cpu_features", &p.CPUFeatures, types.CPUFeatureByName},
		{&yp.Reserved1, "platform.reserved1", &p.Reserved1, nil},
		{&yp.Reserved2, "platform.reserved2", &p.Reserved2, nil},
	} {
		bits, err := parseBits(f.node, f.name, f.names)
		if err != nil {
			return nil, err
		}
		*f.dst = types.BitsOf(bits)
	}
	return p, nil
}

// parseBits accepts an integer, a name known to names, or a list of either.
// A missing node yields nil.
func parseBits(n *yaml.Node, field string, names func(string) (uint32, bool)) (types.Flags, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		v, err := bitValue(n, field, names)
		if err != nil {
			return nil, err
		}
		return types.Scalar(v), nil
	case yaml.SequenceNode:
		c := make(types.Combination, 0, len(n.Content))
		for i, item := range n.Content {
			v, err := bitValue(item, fmt.Sprintf("%s[%d]", field, i), names)
			if err != nil {
				return nil, err
			}
			c = append(c, v)
		}
		return c, nil
	}
	return nil, usage(field, "must be an integer or a list of integers")
}

func bitValue(n *yaml.Node, field string, names func(string) (uint32, bool)) (uint32, error) {
	if n.Kind != yaml.ScalarNode {
		return 0, usage(field, "must be an integer")
	}
	if n.ShortTag() == "!!int" {
		v, err := parseUint(n, field, math.MaxUint32)
		return uint32(v), err
	}
	if n.ShortTag() == "!!str" && names != nil {
		if v, ok := names(strings.ToLower(n.Value)); ok {
			return v, nil
		}
		return 0, usage(field, fmt.Sprintf("unknown name %q", n.Value))
	}
	return 0, usage(field, fmt.Sprintf("must be an integer, got %q", n.Value))
}

func parseUint(n *yaml.Node, field string, limit uint64) (uint64, error) {
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!int" {
		return 0, usage(field, "must be an integer")
	}
	var v uint64
	if err := n.Decode(&v); err != nil || v > limit {
		return 0, usage(field, fmt.Sprintf("%s is out of range", n.Value))
	}
	return v, nil
}

func usage(field, msg string) error {
	return &matcher.UsageError{Field: field, Message: msg}
}
