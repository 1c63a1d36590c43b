package service

import (
	"fmt"

	"jobgate-go/internal/constants"
)

// allowedTransitions 描述CV请求状态机的全部合法流转。
// rejected 和 delivered 是终态，没有出边。
var allowedTransitions = map[string][]string{
	constants.RequestStatusPending: {
		constants.RequestStatusApproved,
		constants.RequestStatusRejected,
	},
	constants.RequestStatusApproved: {
		constants.RequestStatusProcessed,
		constants.RequestStatusDelivered,
	},
	constants.RequestStatusProcessed: {
		constants.RequestStatusDelivered,
	},
}

// adminAssignableStatuses 管理端可以手动设置的目标状态
var adminAssignableStatuses = map[string]bool{
	constants.RequestStatusApproved:  true,
	constants.RequestStatusRejected:  true,
	constants.RequestStatusProcessed: true,
}

// ValidateTransition 校验状态流转是否合法
func ValidateTransition(from, to string) error {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// IsAdminAssignableStatus 判断管理端是否允许手动设置该状态。
// delivered 只能由匹配交付流程产出，不接受手动设置。
func IsAdminAssignableStatus(status string) bool {
	return adminAssignableStatuses[status]
}

// IsTerminalStatus 判断状态是否为终态
func IsTerminalStatus(status string) bool {
	return len(allowedTransitions[status]) == 0 &&
		(status == constants.RequestStatusRejected || status == constants.RequestStatusDelivered)
}
