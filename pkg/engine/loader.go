package engine

import (
	"fmt"
	"os"
	"strings"

	"github.com/sandboxws/rowfilter/pkg/criteria"
	"github.com/sandboxws/rowfilter/pkg/expr"
)

// LoadCriteria reads the filter criteria from the criteria file, or parses
// the where shorthands when no file is set.
func LoadCriteria(cfg FilterConfig) (criteria.List, error) {
	if cfg.CriteriaFile != "" {
		return LoadCriteriaFile(cfg.CriteriaFile)
	}
	isAnd := !strings.EqualFold(cfg.Match, "any")
	list, err := expr.ParseCriteria(cfg.Where, isAnd)
	if err != nil {
		return criteria.List{}, fmt.Errorf("filter.where: %w", err)
	}
	return list, nil
}

// LoadCriteriaFile reads a persisted criteria document of any version.
func LoadCriteriaFile(path string) (criteria.List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return criteria.List{}, fmt.Errorf("read criteria file %s: %w", path, err)
	}
	list, err := criteria.Decode(data)
	if err != nil {
		return criteria.List{}, fmt.Errorf("decode criteria file %s: %w", path, err)
	}
	return list, nil
}
