package rule

import "gopkg.in/yaml.v3"

// yamlSet is the document form of a pattern set. Fields that accept several
// shapes (mode, flags, platform numbers, expressions) are kept as nodes and
// decoded by the loader so errors can name the field.
type yamlSet struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Mode        yaml.Node     `yaml:"mode"`
	Platform    *yamlPlatform `yaml:"platform,omitempty"`
	Extended    bool          `yaml:"extended,omitempty"`
	Expression  *string       `yaml:"expression,omitempty"`
	Flags       yaml.Node     `yaml:"flags,omitempty"`
	Expressions yaml.Node     `yaml:"expressions,omitempty"`
}

type yamlPlatform struct {
	Tune        yaml.Node `yaml:"tune"`
	CPUFeatures yaml.Node `yaml:"cpu_features"`
	Reserved1   yaml.Node `yaml:"reserved1"`
	Reserved2   yaml.Node `yaml:"reserved2"`
}

// yamlPattern is the mapping form of an expressions entry. A bare string
// entry is shorthand for {expression: <string>}.
type yamlPattern struct {
	Name             string    `yaml:"name,omitempty"`
	Expression       string    `yaml:"expression"`
	ID               yaml.Node `yaml:"id"`
	Flags            yaml.Node `yaml:"flags"`
	Extended         *bool     `yaml:"extended,omitempty"`
	MinOffset        yaml.Node `yaml:"min_offset"`
	MaxOffset        yaml.Node `yaml:"max_offset"`
	MinLength        yaml.Node `yaml:"min_length"`
	Examples         []string  `yaml:"examples,omitempty"`
	NegativeExamples []string  `yaml:"negative_examples,omitempty"`
}
