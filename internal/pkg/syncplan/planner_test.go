package syncplan

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/stacksgate/stacksgate/app/models"
	"github.com/stacksgate/stacksgate/internal/pkg/assets"
	"github.com/stacksgate/stacksgate/internal/pkg/clarity"
	"github.com/stacksgate/stacksgate/internal/pkg/txbuilder"
)

type fakeStoreRepo struct {
	stores map[uint]*models.Store
}

func (f *fakeStoreRepo) Create(store *models.Store) error { return nil }

func (f *fakeStoreRepo) GetByID(id uint) (*models.Store, error) {
	store, ok := f.stores[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *store
	return &cp, nil
}

func (f *fakeStoreRepo) GetByMerchantPrincipal(principal string) (*models.Store, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStoreRepo) GetByAPIKeyHash(hash string) (*models.Store, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStoreRepo) Update(store *models.Store) error            { return nil }
func (f *fakeStoreRepo) TouchAPIKeyUsage(id uint, at time.Time) error { return nil }
func (f *fakeStoreRepo) List(offset, limit int) ([]models.Store, error) {
	return nil, nil
}
func (f *fakeStoreRepo) Count() (int64, error) { return int64(len(f.stores)), nil }

type fakeRegistry struct {
	registered map[string]bool
	err        error
}

func (f *fakeRegistry) IsMerchantRegistered(ctx context.Context, principal string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.registered[principal], nil
}

func testBuilder() *txbuilder.CallBuilder {
	return txbuilder.NewCallBuilder(&assets.StaticConfigService{
		Asset: clarity.AssetInfo{
			ContractAddress: "SP000000000000000000002Q6VF78",
			ContractName:    "sbtc-token",
			AssetName:       "sbtc",
		},
		GatewayAddress:  "SP000000000000000000002Q6VF78",
		GatewayName:     "payment-gateway",
		TokenConfigured: true,
	})
}

func functionNames(plan *Plan) []string {
	names := make([]string, 0, len(plan.Calls))
	for _, call := range plan.Calls {
		names = append(names, call.FunctionName)
	}
	return names
}

func TestPlanForUnregisteredStore(t *testing.T) {
	t.Parallel()
	stores := &fakeStoreRepo{stores: map[uint]*models.Store{
		7: {ID: 7, MerchantPrincipal: "SPMERCHANT", Active: true},
	}}
	planner := NewPlanner(stores, &fakeRegistry{registered: map[string]bool{}}, testBuilder())

	plan, err := planner.PlanForStore(context.Background(), 7)
	if err != nil {
		t.Fatalf("PlanForStore: %v", err)
	}
	got := functionNames(plan)
	if len(got) != 2 || got[0] != "register-merchant" || got[1] != "set-merchant-active" {
		t.Fatalf("unexpected call sequence %v", got)
	}
	if plan.StoreID != 7 {
		t.Errorf("plan store id = %d, want 7", plan.StoreID)
	}
}

func TestPlanForRegisteredStoreSkipsRegistration(t *testing.T) {
	t.Parallel()
	stores := &fakeStoreRepo{stores: map[uint]*models.Store{
		7: {ID: 7, MerchantPrincipal: "SPMERCHANT", Active: true},
	}}
	registry := &fakeRegistry{registered: map[string]bool{"SPMERCHANT": true}}
	planner := NewPlanner(stores, registry, testBuilder())

	plan, err := planner.PlanForStore(context.Background(), 7)
	if err != nil {
		t.Fatalf("PlanForStore: %v", err)
	}
	got := functionNames(plan)
	if len(got) != 1 || got[0] != "set-merchant-active" {
		t.Fatalf("unexpected call sequence %v", got)
	}
}

func TestPlanMirrorsInactiveFlag(t *testing.T) {
	t.Parallel()
	stores := &fakeStoreRepo{stores: map[uint]*models.Store{
		3: {ID: 3, MerchantPrincipal: "SPMERCHANT", Active: false},
	}}
	registry := &fakeRegistry{registered: map[string]bool{"SPMERCHANT": true}}
	planner := NewPlanner(stores, registry, testBuilder())

	plan, err := planner.PlanForStore(context.Background(), 3)
	if err != nil {
		t.Fatalf("PlanForStore: %v", err)
	}
	if len(plan.Calls) != 1 {
		t.Fatalf("want a single set-merchant-active call, got %d", len(plan.Calls))
	}
	// Second argument is the active flag.
	args := plan.Calls[0].FunctionArgs
	if len(args) != 2 {
		t.Fatalf("set-merchant-active arg count = %d", len(args))
	}
	if args[1] != clarity.Bool(false) {
		t.Errorf("active flag arg = %+v, want bool false", args[1])
	}
}

func TestPlanForMissingStore(t *testing.T) {
	t.Parallel()
	planner := NewPlanner(&fakeStoreRepo{stores: map[uint]*models.Store{}}, &fakeRegistry{}, testBuilder())

	_, err := planner.PlanForStore(context.Background(), 99)
	if !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("err = %v, want ErrStoreNotFound", err)
	}
}

func TestPlanPropagatesChainError(t *testing.T) {
	t.Parallel()
	stores := &fakeStoreRepo{stores: map[uint]*models.Store{
		1: {ID: 1, MerchantPrincipal: "SPMERCHANT", Active: true},
	}}
	chainErr := errors.New("node down")
	planner := NewPlanner(stores, &fakeRegistry{err: chainErr}, testBuilder())

	_, err := planner.PlanForStore(context.Background(), 1)
	if !errors.Is(err, chainErr) {
		t.Fatalf("err = %v, want propagated chain error", err)
	}
}
