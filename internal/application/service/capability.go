package service

import (
	"context"

	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
)

// DefaultRoleCapabilities is the role table used when configuration supplies none
func DefaultRoleCapabilities() map[string][]string {
	return map[string][]string{
		entity.RoleHEI: {
			entity.CapabilitySubmitLiquidation,
		},
		entity.RoleRegionalCoordinator: {
			entity.CapabilityEndorseToAccounting,
			entity.CapabilityReturnApplication,
		},
		entity.RoleAccountant: {
			entity.CapabilityEndorseToCOA,
			entity.CapabilityReturnToRC,
		},
		entity.RoleAdmin: {
			entity.CapabilitySubmitLiquidation,
			entity.CapabilityEndorseToAccounting,
			entity.CapabilityReturnApplication,
			entity.CapabilityEndorseToCOA,
			entity.CapabilityReturnToRC,
			entity.CapabilityManageReference,
		},
	}
}

// RoleCapabilityChecker grants capabilities through the roles an actor carries
type RoleCapabilityChecker struct {
	grants map[string]map[string]struct{}
}

// NewRoleCapabilityChecker builds a checker from role -> capabilities
func NewRoleCapabilityChecker(roles map[string][]string) *RoleCapabilityChecker {
	grants := make(map[string]map[string]struct{}, len(roles))
	for role, caps := range roles {
		set := make(map[string]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		grants[role] = set
	}
	return &RoleCapabilityChecker{grants: grants}
}

// HasCapability implements port.CapabilityChecker
func (c *RoleCapabilityChecker) HasCapability(ctx context.Context, actor entity.Actor, capability string) bool {
	for _, role := range actor.Roles {
		if _, ok := c.grants[role][capability]; ok {
			return true
		}
	}
	return false
}

var _ port.CapabilityChecker = (*RoleCapabilityChecker)(nil)
