package rule

import "embed"

const setsDir = "sets"

// builtinSetsFS embeds the built-in pattern sets.
//
//go:embed sets/*.yaml
var builtinSetsFS embed.FS
