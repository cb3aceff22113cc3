package rbac

// Role is the tag carried by every authenticated principal. Capability
// checks are pure functions over this tag; there is no per-user grant table.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// Simple default policy. Admins can do everything.
var RolePermissions = map[Role][]string{
	RoleStudent: {
		"exam:view",
		"attempt:start",
		"attempt:answer",
		"attempt:submit",
		"result:view-own",
		"profile:view",
	},
	RoleAdmin: {
		"*",
	},
}
