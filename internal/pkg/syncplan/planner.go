package syncplan

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/stacksgate/stacksgate/app/repository"
	"github.com/stacksgate/stacksgate/internal/pkg/txbuilder"
)

// RegistryReader is the slice of chain access the planner needs.
type RegistryReader interface {
	IsMerchantRegistered(ctx context.Context, principal string) (bool, error)
}

// Plan is the minimal call set that converges on-chain merchant state with
// the local projection. The planner never touches chain state itself; every
// call still requires an explicit admin wallet signature.
type Plan struct {
	StoreID uint                             `json:"storeId"`
	Calls   []*txbuilder.UnsignedContractCall `json:"calls"`
}

// ErrStoreNotFound is returned when the store projection does not exist.
var ErrStoreNotFound = errors.New("store not found")

// Planner diffs the local merchant projection against on-chain registration
// state.
type Planner struct {
	stores  repository.StoreRepository
	chain   RegistryReader
	builder *txbuilder.CallBuilder
}

// NewPlanner wires the planner.
func NewPlanner(stores repository.StoreRepository, chain RegistryReader, builder *txbuilder.CallBuilder) *Planner {
	return &Planner{stores: stores, chain: chain, builder: builder}
}

// PlanForStore emits the calls needed to converge the merchant's on-chain
// state: register-merchant only when not yet registered (the contract-side
// call fails on a second attempt, so never double-propose it), and always a
// set-merchant-active call mirroring the local flag, which is idempotent on
// the contract side.
func (p *Planner) PlanForStore(ctx context.Context, storeID uint) (*Plan, error) {
	store, err := p.stores.GetByID(storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, err
	}

	registered, err := p.chain.IsMerchantRegistered(ctx, store.MerchantPrincipal)
	if err != nil {
		return nil, err
	}

	plan := &Plan{StoreID: store.ID}
	if !registered {
		call, err := p.builder.RegisterMerchant(store.MerchantPrincipal)
		if err != nil {
			return nil, err
		}
		plan.Calls = append(plan.Calls, call)
	}

	active, err := p.builder.SetMerchantActive(store.MerchantPrincipal, store.Active)
	if err != nil {
		return nil, err
	}
	plan.Calls = append(plan.Calls, active)
	return plan, nil
}
