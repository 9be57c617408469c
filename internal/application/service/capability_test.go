package service

import (
	"context"
	"testing"

	"github.com/garyjia/hei-liquidation/internal/domain/entity"
)

func TestRoleCapabilityChecker(t *testing.T) {
	checker := NewRoleCapabilityChecker(DefaultRoleCapabilities())
	ctx := context.Background()

	tests := []struct {
		name       string
		roles      []string
		capability string
		want       bool
	}{
		{"hei submits", []string{entity.RoleHEI}, entity.CapabilitySubmitLiquidation, true},
		{"hei cannot endorse", []string{entity.RoleHEI}, entity.CapabilityEndorseToAccounting, false},
		{"rc endorses", []string{entity.RoleRegionalCoordinator}, entity.CapabilityEndorseToAccounting, true},
		{"rc returns", []string{entity.RoleRegionalCoordinator}, entity.CapabilityReturnApplication, true},
		{"rc cannot endorse to coa", []string{entity.RoleRegionalCoordinator}, entity.CapabilityEndorseToCOA, false},
		{"accountant endorses to coa", []string{entity.RoleAccountant}, entity.CapabilityEndorseToCOA, true},
		{"accountant returns to rc", []string{entity.RoleAccountant}, entity.CapabilityReturnToRC, true},
		{"roles combine", []string{entity.RoleHEI, entity.RoleAccountant}, entity.CapabilityReturnToRC, true},
		{"admin manages references", []string{entity.RoleAdmin}, entity.CapabilityManageReference, true},
		{"unknown role", []string{"auditor"}, entity.CapabilitySubmitLiquidation, false},
		{"no roles", nil, entity.CapabilitySubmitLiquidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checker.HasCapability(ctx, entity.Actor{ID: "u", Roles: tt.roles}, tt.capability)
			if got != tt.want {
				t.Errorf("HasCapability(%v, %q) = %v, want %v", tt.roles, tt.capability, got, tt.want)
			}
		})
	}
}
