package notificator

import (
	"regexp"
	"sync"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
)

// patternCache keeps compiled case-insensitive subscription patterns.
type patternCache struct {
	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
}

func newPatternCache() *patternCache {
	return &patternCache{compiled: make(map[string]*regexp.Regexp)}
}

func (c *patternCache) get(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.compiled[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	c.compiled[pattern] = re
	return re, nil
}

func (c *patternCache) matches(sub *models.Subscription, token *models.TokenDeployment) bool {
	if len(sub.Chains) > 0 && !contains(sub.Chains, token.Chain) {
		return false
	}
	if sub.HasLiquidity && !token.LPInfo.HasLiquidity() {
		return false
	}
	if sub.MinLiquidity.IsPositive() && token.DexData.Liquidity.LessThan(sub.MinLiquidity) {
		return false
	}
	if !c.matchPattern(sub.NamePattern, token.Metadata.Name) {
		return false
	}
	return c.matchPattern(sub.SymbolPattern, token.Metadata.Symbol)
}

// matchPattern treats an empty pattern as a match and an invalid one as a miss.
func (c *patternCache) matchPattern(pattern, value string) bool {
	if pattern == "" {
		return true
	}
	re, err := c.get(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
