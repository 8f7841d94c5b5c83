package rules

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"flowgraph/pkg/models"
)

var techniqueTagRegex = regexp.MustCompile(`^attack\.t\d{4}(?:\.\d{3})?$`)

// networkServices are the Zeek log services a flow row is assembled from.
var networkServices = map[string]struct{}{
	"conn": {}, "dns": {}, "http": {}, "ssl": {}, "weird": {},
}

// SigmaLoadStats tracks the number of loaded and skipped rules.
type SigmaLoadStats struct {
	TotalFiles        int
	Loaded            int
	SkippedComplex    int
	SkippedDatasource int
	SkippedInvalid    int
}

type compiledSigmaRule struct {
	rule    sigma.Rule
	eval    *sigmaevaluator.RuleEvaluator
	label   models.IoaTag
	service string
}

// SigmaEngine evaluates Sigma rules against individual flow records.
type SigmaEngine struct {
	rules []compiledSigmaRule
	ctx   context.Context
}

// NewSigmaEngine loads Sigma rules from a file or directory and compiles evaluators.
// Rules for other log sources, multi-event rules and unparsable files are skipped
// and counted in stats.
func NewSigmaEngine(path string) (*SigmaEngine, SigmaLoadStats, error) {
	var stats SigmaLoadStats

	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, stats, fmt.Errorf("resolve rule path: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, stats, fmt.Errorf("stat rule path: %w", err)
	}

	files := make([]string, 0, 64)
	if info.IsDir() {
		err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !entry.IsDir() && isYAMLFile(filePath) {
				files = append(files, filePath)
			}
			return nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("walk rule directory: %w", err)
		}
	} else {
		if !isYAMLFile(resolved) {
			return nil, stats, fmt.Errorf("rule file must end with .yml or .yaml: %s", resolved)
		}
		files = append(files, resolved)
	}

	stats.TotalFiles = len(files)
	compiled := make([]compiledSigmaRule, 0, len(files))
	for _, ruleFile := range files {
		rule, err := parseSigmaRuleFile(ruleFile)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		if !isFlowCompatible(rule) {
			stats.SkippedDatasource++
			continue
		}
		if ok, _ := isSimpleSingleEventRule(rule); !ok {
			stats.SkippedComplex++
			continue
		}
		compiled = append(compiled, compiledSigmaRule{
			rule:    rule,
			eval:    sigmaevaluator.ForRule(rule),
			label:   ioaTagFromRule(rule),
			service: logService(rule),
		})
		stats.Loaded++
	}

	return &SigmaEngine{rules: compiled, ctx: context.Background()}, stats, nil
}

// Apply evaluates all loaded rules against the record's present fields. Each rule
// sees both the flat column names and the Zeek field names of its log service.
func (e *SigmaEngine) Apply(record *models.FlowRecord) []models.IoaTag {
	if e == nil || record == nil || len(e.rules) == 0 {
		return nil
	}

	flat := record.Fields()
	views := make(map[string]map[string]interface{}, 2)
	out := make([]models.IoaTag, 0, 2)
	for _, rule := range e.rules {
		fields, ok := views[rule.service]
		if !ok {
			fields = zeekView(flat, rule.service)
			views[rule.service] = fields
		}
		res, err := rule.eval.Matches(e.ctx, fields)
		if err != nil {
			continue
		}
		if res.Match {
			out = append(out, rule.label)
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// Len returns the number of compiled rules.
func (e *SigmaEngine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

func parseSigmaRuleFile(path string) (sigma.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("read sigma rule %s: %w", path, err)
	}
	rule, err := sigma.ParseRule(raw)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("parse sigma rule %s: %w", path, err)
	}
	return rule, nil
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

func logService(rule sigma.Rule) string {
	return strings.ToLower(strings.TrimSpace(rule.Logsource.Service))
}

func isFlowCompatible(rule sigma.Rule) bool {
	product := strings.ToLower(strings.TrimSpace(rule.Logsource.Product))
	service := logService(rule)

	if product != "" && product != "zeek" {
		return false
	}
	if service != "" {
		if _, ok := networkServices[service]; !ok {
			return false
		}
	}
	return true
}

func isSimpleSingleEventRule(rule sigma.Rule) (bool, string) {
	if rule.Detection.Timeframe > 0 {
		return false, "timeframe is not supported"
	}

	for _, cond := range rule.Detection.Conditions {
		if cond.Aggregation != nil {
			return false, "aggregation condition is not supported"
		}
		if !isSimpleSearchExpression(cond.Search) {
			return false, "complex condition expression is not supported"
		}
	}

	for _, search := range rule.Detection.Searches {
		if len(search.Keywords) > 0 {
			return false, "keyword search is not supported"
		}
		if len(search.EventMatchers) == 0 {
			return false, "search has no event matchers"
		}
	}

	return true, ""
}

func isSimpleSearchExpression(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.And:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Or:
		for _, child := range e {
			if !isSimpleSearchExpression(child) {
				return false
			}
		}
		return true
	case sigma.Not:
		return isSimpleSearchExpression(e.Expr)
	default:
		return false
	}
}

func ioaTagFromRule(rule sigma.Rule) models.IoaTag {
	id := strings.TrimSpace(rule.ID)
	if id == "" {
		id = strings.TrimSpace(rule.Title)
	}

	level := strings.ToLower(strings.TrimSpace(rule.Level))
	if level == "" {
		level = "medium"
	}

	tactic, technique := parseAttackTags(rule.Tags)
	return models.IoaTag{
		ID:        id,
		Name:      strings.TrimSpace(rule.Title),
		Severity:  level,
		Tactic:    tactic,
		Technique: technique,
	}
}

func parseAttackTags(tags []string) (string, string) {
	var tactic string
	var technique string

	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if !strings.HasPrefix(tag, "attack.") {
			continue
		}
		suffix := strings.TrimPrefix(tag, "attack.")
		if technique == "" && techniqueTagRegex.MatchString(tag) {
			technique = strings.ToUpper(strings.ReplaceAll(suffix, ".", "/"))
			continue
		}
		if tactic == "" && !strings.HasPrefix(suffix, "t") {
			tactic = strings.ReplaceAll(suffix, "_", "-")
		}
	}

	return tactic, technique
}
