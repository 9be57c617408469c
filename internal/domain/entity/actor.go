package entity

// Capability names checked by the workflow engine
const (
	CapabilitySubmitLiquidation   = "submit_liquidation"
	CapabilityEndorseToAccounting = "endorse_to_accounting"
	CapabilityReturnApplication   = "return_application"
	CapabilityEndorseToCOA        = "endorse_to_coa"
	CapabilityReturnToRC          = "return_to_rc"
	CapabilityManageReference     = "manage_reference_data"
)

// Role names
const (
	RoleHEI                 = "hei"
	RoleRegionalCoordinator = "regional_coordinator"
	RoleAccountant          = "accountant"
	RoleAdmin               = "admin"
)

// Actor is the caller of a workflow operation, passed explicitly on every call
type Actor struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Roles    []string `json:"roles"`
	HEIID    *int64   `json:"hei_id,omitempty"`
	RegionID *int64   `json:"region_id,omitempty"`
}

// HasRole reports whether the actor carries the role
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// User is a persisted account used for notification recipient resolution
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	HEIID      *int64 `json:"hei_id,omitempty"`
	RegionID   *int64 `json:"region_id,omitempty"`
	LarkOpenID string `json:"lark_open_id,omitempty"`
}
