package utils

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"tokenshop-backend/internal/domain"
)

// AllocationInput is everything the optimizer needs; it performs no I/O.
type AllocationInput struct {
	Budget decimal.Decimal
	Orders []domain.PendingGrantOrder
	Users  map[string]domain.User
	// ApprovedEmails, when non-nil, restricts allocation to users whose
	// lowercased email is in the set.
	ApprovedEmails map[string]struct{}
}

// OptimizeAllocations picks which (user, item) groups of pending orders to fund
// within the budget. Groups are visited cheapest first (ties by user id, then
// item id) and funded whole when they fit the remaining budget.
func OptimizeAllocations(in AllocationInput) (*domain.AllocationPlan, error) {
	if in.Budget.IsNegative() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidBudget, in.Budget.String())
	}

	plan := &domain.AllocationPlan{
		Budget:          in.Budget,
		RemainingBudget: in.Budget,
		TotalRequested:  decimal.Zero,
		TotalAllocated:  decimal.Zero,
		Allocations:     []domain.GrantAllocation{},
		Unallocated:     []domain.GrantGroup{},
	}

	groups := groupOrders(in, plan)
	SortGroups(groups)

	for _, g := range groups {
		plan.TotalRequested = plan.TotalRequested.Add(g.TotalCost)
		if g.TotalCost.LessThanOrEqual(plan.RemainingBudget) {
			plan.Allocations = append(plan.Allocations, domain.GrantAllocation{
				Request: BuildGrantRequest(g),
				Group:   g,
			})
			plan.RemainingBudget = plan.RemainingBudget.Sub(g.TotalCost)
			plan.TotalAllocated = plan.TotalAllocated.Add(g.TotalCost)
			continue
		}
		plan.Unallocated = append(plan.Unallocated, g)
	}

	return plan, nil
}

func groupOrders(in AllocationInput, plan *domain.AllocationPlan) []domain.GrantGroup {
	type key struct{ userID, itemID string }
	index := make(map[key]int)
	var groups []domain.GrantGroup

	for _, o := range in.Orders {
		if !o.USDCost.IsPositive() {
			continue
		}
		user, ok := in.Users[o.UserID]
		if !ok {
			plan.DroppedOrderIDs = append(plan.DroppedOrderIDs, o.OrderID)
			continue
		}
		if in.ApprovedEmails != nil {
			if _, approved := in.ApprovedEmails[strings.ToLower(strings.TrimSpace(user.Email))]; !approved {
				plan.FilteredOut++
				continue
			}
		}

		k := key{o.UserID, o.ShopItemID}
		i, seen := index[k]
		if !seen {
			i = len(groups)
			index[k] = i
			groups = append(groups, domain.GrantGroup{
				UserID:       o.UserID,
				Email:        user.Email,
				ShopItemID:   o.ShopItemID,
				ItemName:     o.ItemName,
				TotalCost:    decimal.Zero,
				MerchantIDs:  o.MerchantIDs,
				CategoryLock: o.CategoryLock,
			})
		}
		g := &groups[i]
		g.Quantity++
		g.TotalCost = g.TotalCost.Add(o.USDCost)
		g.TokensSpent += o.PriceAtOrder
		g.OrderIDs = append(g.OrderIDs, o.OrderID)
	}
	return groups
}

// SortGroups orders groups by total cost ascending, then user id, then item id.
func SortGroups(groups []domain.GrantGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if c := a.TotalCost.Cmp(b.TotalCost); c != 0 {
			return c < 0
		}
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.ShopItemID < b.ShopItemID
	})
}

// BuildGrantRequest derives the provider payload for a funded group.
func BuildGrantRequest(g domain.GrantGroup) domain.GrantRequest {
	req := domain.GrantRequest{
		AmountCents: ToCents(g.TotalCost),
		Email:       g.Email,
		Purpose:     TruncatePurpose(g.ItemName),
	}
	if g.CategoryLock != nil && *g.CategoryLock != "" {
		lock := *g.CategoryLock
		req.CategoryLock = &lock
	}
	if len(g.MerchantIDs) > 0 {
		lock := strings.Join(g.MerchantIDs, ",")
		req.MerchantLock = &lock
	}
	return req
}
