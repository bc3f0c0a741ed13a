// internal/utils/roles.go
package utils

import "metalhead/internal/constants"

// roleHierarchy задаёт порядок ролей от младшей к старшей.
var roleHierarchy = map[string]int{
	constants.ROLE_USER:     1,
	constants.ROLE_OPERATOR: 2,
	constants.ROLE_OWNER:    3,
}

// IsRoleOrHigher проверяет, соответствует ли роль пользователя минимально
// требуемой роли.
func IsRoleOrHigher(userRole string, requiredRole string) bool {
	userLevel, okUser := roleHierarchy[userRole]
	requiredLevel, okRequired := roleHierarchy[requiredRole]
	if !okUser || !okRequired {
		return false
	}
	return userLevel >= requiredLevel
}
