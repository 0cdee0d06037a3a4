package models

// Capability is an operation the access gate can allow or deny.
type Capability string

const (
	CapManageStock         Capability = "manage_stock"
	CapViewOwnTransactions Capability = "view_own_transactions"
	CapTriggerLowStock     Capability = "trigger_low_stock"
	CapViewMonthlySummary  Capability = "view_monthly_summary"
	CapViewAllTransactions Capability = "view_all_transactions"
	CapManageUsers         Capability = "manage_users"
	CapViewActivity        Capability = "view_activity"
)

var adminCapabilities = map[Capability]bool{
	CapManageStock:         true,
	CapViewOwnTransactions: true,
	CapTriggerLowStock:     true,
}

// Can is the single place role checks are made.
// Super admins can do everything; admins are limited to self-service stock work.
func (r Role) Can(c Capability) bool {
	switch r {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return adminCapabilities[c]
	default:
		return false
	}
}

var allCapabilities = []Capability{
	CapManageStock,
	CapViewOwnTransactions,
	CapTriggerLowStock,
	CapViewMonthlySummary,
	CapViewAllTransactions,
	CapManageUsers,
	CapViewActivity,
}

// Capabilities lists what the role may do, in a stable order.
func (r Role) Capabilities() []Capability {
	out := make([]Capability, 0, len(allCapabilities))
	for _, c := range allCapabilities {
		if r.Can(c) {
			out = append(out, c)
		}
	}
	return out
}
