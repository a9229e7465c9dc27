package constants

import "fmt"

// Role yang dikenali di klaim JWT ("role" / "roles")
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

// Template pesan error role
const (
	ErrOnlyStaffCanAccess = "Hanya admin atau manager yang boleh mengakses fitur %s."
)

func RoleErrorStaff(feature string) string {
	return fmt.Sprintf(ErrOnlyStaffCanAccess, feature)
}

// AdminRoles boleh memakai /api/admin
var AdminRoles = []string{
	RoleAdmin,
	RoleManager,
}
