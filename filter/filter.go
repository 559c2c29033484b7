package filter

import (
	"log/slog"
	"regexp"
	"slices"
	"unicode"
	"unicode/utf8"

	"github.com/scipunch/mytwt/config"
	"github.com/scipunch/mytwt/parser"
)

// FilterPipeline applies a series of named filters to timeline posts
type FilterPipeline struct {
	filters map[string]*CompiledFilter
	names   []string
}

// CompiledFilter contains compiled regex patterns for efficient matching
type CompiledFilter struct {
	config          config.Filter
	excludePatterns []*regexp.Regexp
	patternSources  []string
}

// NewFilterPipeline compiles filtersConfig; names selects the filters Keep applies, in order
func NewFilterPipeline(filtersConfig map[string]config.Filter, names []string) (*FilterPipeline, error) {
	compiled := make(map[string]*CompiledFilter)

	for name, filterCfg := range filtersConfig {
		cf := &CompiledFilter{
			config:          filterCfg,
			excludePatterns: make([]*regexp.Regexp, 0, len(filterCfg.ExcludePatterns)),
		}

		for _, pattern := range filterCfg.ExcludePatterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				slog.Warn("invalid regex pattern in filter", "filter", name, "pattern", pattern, "error", err)
				continue
			}
			cf.excludePatterns = append(cf.excludePatterns, re)
			cf.patternSources = append(cf.patternSources, pattern)
		}

		compiled[name] = cf
	}

	return &FilterPipeline{filters: compiled, names: names}, nil
}

// Keep reports whether post passes the configured pipeline
func (fp *FilterPipeline) Keep(post parser.Post) bool {
	include, reason := fp.ShouldInclude(post, fp.names)
	if !include {
		slog.Debug("post filtered out", "author", post.Author, "reason", reason)
	}
	return include
}

// ShouldInclude returns true if the post passes all filters in the pipeline
// filterNames is a list of filter names to apply in order
func (fp *FilterPipeline) ShouldInclude(post parser.Post, filterNames []string) (bool, string) {
	if len(filterNames) == 0 {
		return true, ""
	}

	for _, filterName := range filterNames {
		filter, exists := fp.filters[filterName]
		if !exists {
			slog.Warn("filter not found, skipping", "filter_name", filterName)
			continue
		}

		if shouldInclude, reason := fp.applyFilter(post, filter, filterName); !shouldInclude {
			return false, reason
		}
	}

	return true, ""
}

func (fp *FilterPipeline) applyFilter(post parser.Post, filter *CompiledFilter, filterName string) (bool, string) {
	if len(filter.config.Nicks) > 0 && !slices.Contains(filter.config.Nicks, post.Author) {
		return true, ""
	}

	text := post.Text

	if filter.config.MinLength > 0 && utf8.RuneCountInString(text) < filter.config.MinLength {
		return false, filterName + ":min_length"
	}

	if filter.config.MinWords > 0 {
		wordCount := countWords(text)
		if wordCount < filter.config.MinWords {
			return false, filterName + ":min_words"
		}
	}

	for i, pattern := range filter.excludePatterns {
		if pattern.MatchString(text) {
			return false, filterName + ":exclude_pattern[" + filter.patternSources[i] + "]"
		}
	}

	return true, ""
}

func countWords(text string) int {
	words := 0
	inWord := false

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if !inWord {
				words++
				inWord = true
			}
		} else {
			inWord = false
		}
	}

	return words
}
