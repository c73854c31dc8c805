package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/hsmatch/pkg/matcher"
	"github.com/praetorian-inc/hsmatch/pkg/rule"
	"github.com/praetorian-inc/hsmatch/pkg/store"
)

const (
	builtinPrefix = "builtin:"
	catalogPrefix = "catalog:"
)

// loadSet reads a pattern set from a YAML file or, for "builtin:NAME", from
// the embedded sets. include/exclude filter patterns by name.
func loadSet(source, include, exclude string) (*rule.Set, error) {
	loader := rule.NewLoader()

	var set *rule.Set
	var err error
	if name, ok := strings.CutPrefix(source, builtinPrefix); ok {
		set, err = loader.Builtin(name)
	} else {
		set, err = loader.LoadFile(source)
	}
	if err != nil {
		return nil, err
	}

	// Apply filtering if patterns specified
	if include != "" || exclude != "" {
		config := rule.FilterConfig{
			Include: rule.ParsePatterns(include),
			Exclude: rule.ParsePatterns(exclude),
		}
		if err := rule.Filter(set, config); err != nil {
			return nil, fmt.Errorf("filtering patterns: %w", err)
		}
	}

	if err := rule.Validate(set); err != nil {
		return nil, err
	}
	return set, nil
}

// isSetSource reports whether source names a pattern set rather than a
// serialized database.
func isSetSource(source string) bool {
	if strings.HasPrefix(source, builtinPrefix) {
		return true
	}
	ext := strings.ToLower(filepath.Ext(source))
	return ext == ".yaml" || ext == ".yml"
}

// openDatabase resolves source to a database. Sources are "catalog:NAME",
// a pattern set (compiled on the fly) or a serialized database file. The
// set is returned when one was compiled, for labelling matches.
func openDatabase(source, include, exclude string) (*matcher.Database, *rule.Set, error) {
	switch {
	case strings.HasPrefix(source, catalogPrefix):
		db, err := openCatalogEntry(strings.TrimPrefix(source, catalogPrefix))
		return db, nil, err

	case isSetSource(source):
		set, err := loadSet(source, include, exclude)
		if err != nil {
			return nil, nil, fmt.Errorf("loading %s: %w", source, err)
		}
		db, err := matcher.Compile(set.Request())
		if err != nil {
			return nil, nil, err
		}
		return db, set, nil

	default:
		blob, err := os.ReadFile(source)
		if err != nil {
			return nil, nil, err
		}
		db, err := matcher.Deserialize(blob)
		return db, nil, err
	}
}

func openCatalog() (store.Store, error) {
	s, err := store.New(store.Config{Path: cfg.Catalog})
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	return s, nil
}

func openCatalogEntry(name string) (*matcher.Database, error) {
	s, err := openCatalog()
	if err != nil {
		return nil, err
	}
	defer s.Close()

	entry, err := s.Get(name)
	if err != nil {
		return nil, fmt.Errorf("catalog entry %s: %w", name, err)
	}
	return entry.Open()
}
