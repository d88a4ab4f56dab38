package rowguard

import "context"

// RuleProvider returns the rules active for a statement.
// It is called once per Rewrite, before the cache is consulted.
type RuleProvider interface {
	Rules(ctx context.Context, statementID string) ([]Rule, error)
}

// ProviderFunc adapts a function to the RuleProvider interface.
type ProviderFunc func(ctx context.Context, statementID string) ([]Rule, error)

// Rules implements RuleProvider.
func (f ProviderFunc) Rules(ctx context.Context, statementID string) ([]Rule, error) {
	return f(ctx, statementID)
}

// StaticProvider returns the same rules for every statement.
func StaticProvider(rules ...Rule) RuleProvider {
	return ProviderFunc(func(context.Context, string) ([]Rule, error) {
		return rules, nil
	})
}

// ContextProvider returns the rules bound to the context with WithRules.
// It is the default provider of a Rewriter.
type ContextProvider struct{}

// Rules implements RuleProvider.
func (ContextProvider) Rules(ctx context.Context, _ string) ([]Rule, error) {
	return RulesFromContext(ctx), nil
}

var (
	_ RuleProvider = ProviderFunc(nil)
	_ RuleProvider = ContextProvider{}
)
