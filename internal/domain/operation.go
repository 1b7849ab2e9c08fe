package domain

import (
	"fmt"
	"sort"
)

// OperationKind identifies a ledger operation type.
type OperationKind string

const (
	OpSignupCredit    OperationKind = "SIGNUP_CREDIT"
	OpDailyReward     OperationKind = "DAILY_REWARD"
	OpCreditAdd       OperationKind = "CREDIT_ADD"
	OpCreditSpend     OperationKind = "CREDIT_SPEND"
	OpContentCreation OperationKind = "CONTENT_CREATION"
	OpContentAccess   OperationKind = "CONTENT_ACCESS"
)

// OperationSpec fixes the signed delta for a kind and whether the kind may
// originate an account's first entry.
type OperationSpec struct {
	Delta          int64
	CreatesAccount bool
}

// SharedOperations is the base operation table common to all deployments.
func SharedOperations() map[OperationKind]OperationSpec {
	return map[OperationKind]OperationSpec{
		OpSignupCredit: {Delta: 3, CreatesAccount: true},
		OpDailyReward:  {Delta: 1},
		OpCreditAdd:    {Delta: 10},
		OpCreditSpend:  {Delta: -1},
	}
}

// AppOperations is this deployment's extension of the shared table.
func AppOperations() map[OperationKind]OperationSpec {
	return map[OperationKind]OperationSpec{
		OpContentCreation: {Delta: -5},
		OpContentAccess:   {Delta: 0},
	}
}

// OperationRegistry is the merged, validated kind table the engine consults.
// It is assembled once at construction; adding a kind means adding a table
// entry, never touching engine logic.
type OperationRegistry struct {
	ops map[OperationKind]OperationSpec
}

// NewOperationRegistry merges the given source tables. A kind appearing in
// more than one source, or an empty kind name, fails construction.
func NewOperationRegistry(sources ...map[OperationKind]OperationSpec) (*OperationRegistry, error) {
	merged := make(map[OperationKind]OperationSpec)
	for _, src := range sources {
		for kind, spec := range src {
			if kind == "" {
				return nil, fmt.Errorf("operation registry: empty kind name")
			}
			if _, dup := merged[kind]; dup {
				return nil, fmt.Errorf("operation registry: duplicate kind %q", kind)
			}
			merged[kind] = spec
		}
	}
	if len(merged) == 0 {
		return nil, fmt.Errorf("operation registry: no operations configured")
	}
	return &OperationRegistry{ops: merged}, nil
}

// Lookup returns the spec for a kind, reporting whether it is registered.
func (r *OperationRegistry) Lookup(kind OperationKind) (OperationSpec, bool) {
	spec, ok := r.ops[kind]
	return spec, ok
}

// Kinds returns all registered kinds in stable order.
func (r *OperationRegistry) Kinds() []OperationKind {
	kinds := make([]OperationKind, 0, len(r.ops))
	for k := range r.ops {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
