package domain

const (
	RoleSuperAdmin  = "super_admin"
	RoleBranchAdmin = "admin_cabang"
)

// Principal is the authenticated caller of an API request.
type Principal struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	BranchID string `json:"branch_id,omitempty"`
}

func (p Principal) IsSuperAdmin() bool {
	return p.Role == RoleSuperAdmin
}

// ScopeBranch returns the branch a report may cover. Branch admins are pinned to their
// own branch whatever they ask for; super admins may pick any branch or none.
func (p Principal) ScopeBranch(requested string) string {
	if p.Role == RoleBranchAdmin {
		return p.BranchID
	}
	return requested
}
