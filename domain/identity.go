package domain

// Role is the identity-provider claim attached to every caller.
type Role string

const (
	RoleUser    Role = "user"
	RoleAgent   Role = "agent"
	RoleManager Role = "manager"
)

// Identity is the already-authenticated actor performing an operation.
// It is always passed explicitly; the core never reads ambient state to
// discover who is calling.
type Identity struct {
	ID   string
	Role Role
}

func (i Identity) IsManager() bool {
	return i.Role == RoleManager
}

// CanManage reports whether the identity may drive writes on a session
// assigned to agentID: managers always, agents only their own sessions.
func (i Identity) CanManage(agentID string) bool {
	if i.IsManager() {
		return true
	}
	return i.Role == RoleAgent && agentID != "" && i.ID == agentID
}
