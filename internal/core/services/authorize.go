package services

import "ssc-carecard/internal/adapters/persistence/models"

// Principal is the validated caller identity handed in from the auth layer.
// The core never inspects tokens itself; it only evaluates this value
// against an Action through the injected Authorizer.
type Principal struct {
	UserID   uint
	Username string
	Role     string
	SiteID   *uint
}

// Action is a capability the caller requests from the core
type Action string

const (
	ActionIssueCard      Action = "card:issue"
	ActionManageCards    Action = "card:manage"
	ActionManageHolders  Action = "holder:manage"
	ActionManageSites    Action = "site:manage"
	ActionManageSettings Action = "settings:manage"
	ActionBill           Action = "billing:create"
)

// Authorizer decides whether a principal may perform an action.
// Injected into the services so the core stays testable without the
// HTTP/JWT layer.
type Authorizer interface {
	Allow(p Principal, action Action) bool
}

// RoleAuthorizer is the default Authorizer: a static role-to-capability map
type RoleAuthorizer struct{}

// NewRoleAuthorizer creates the default role-based authorizer
func NewRoleAuthorizer() *RoleAuthorizer {
	return &RoleAuthorizer{}
}

var roleCapabilities = map[string]map[Action]bool{
	models.RoleAdmin: {
		ActionIssueCard:      true,
		ActionManageCards:    true,
		ActionManageHolders:  true,
		ActionManageSites:    true,
		ActionManageSettings: true,
		ActionBill:           true,
	},
	models.RoleStaff: {
		ActionIssueCard:     true,
		ActionManageCards:   true,
		ActionManageHolders: true,
		ActionBill:          true,
	},
	models.RoleOperator: {
		ActionBill: true,
	},
}

// Allow reports whether the principal's role grants the action
func (a *RoleAuthorizer) Allow(p Principal, action Action) bool {
	caps, ok := roleCapabilities[p.Role]
	if !ok {
		return false
	}
	return caps[action]
}

// AllowAll authorizes everything; used in tests
type AllowAll struct{}

func (AllowAll) Allow(Principal, Action) bool { return true }
