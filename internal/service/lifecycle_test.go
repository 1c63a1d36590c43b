package service

import (
	"testing"

	"jobgate-go/internal/constants"

	"github.com/stretchr/testify/assert"
)

func TestPendingTransitions(t *testing.T) {
	// pending 只能走向 approved 或 rejected
	assert.NoError(t, ValidateTransition(constants.RequestStatusPending, constants.RequestStatusApproved))
	assert.NoError(t, ValidateTransition(constants.RequestStatusPending, constants.RequestStatusRejected))
	assert.Error(t, ValidateTransition(constants.RequestStatusPending, constants.RequestStatusProcessed))
	assert.Error(t, ValidateTransition(constants.RequestStatusPending, constants.RequestStatusDelivered))
}

func TestApprovedTransitions(t *testing.T) {
	assert.NoError(t, ValidateTransition(constants.RequestStatusApproved, constants.RequestStatusProcessed))
	assert.NoError(t, ValidateTransition(constants.RequestStatusApproved, constants.RequestStatusDelivered))
	// 不允许回退
	assert.Error(t, ValidateTransition(constants.RequestStatusApproved, constants.RequestStatusPending))
	assert.Error(t, ValidateTransition(constants.RequestStatusApproved, constants.RequestStatusRejected))
}

func TestProcessedTransitions(t *testing.T) {
	assert.NoError(t, ValidateTransition(constants.RequestStatusProcessed, constants.RequestStatusDelivered))
	assert.Error(t, ValidateTransition(constants.RequestStatusProcessed, constants.RequestStatusApproved))
}

func TestRejectedIsTerminal(t *testing.T) {
	// rejected 是终态，任何出边都非法
	for _, to := range []string{
		constants.RequestStatusPending,
		constants.RequestStatusApproved,
		constants.RequestStatusProcessed,
		constants.RequestStatusDelivered,
	} {
		err := ValidateTransition(constants.RequestStatusRejected, to)
		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
	assert.True(t, IsTerminalStatus(constants.RequestStatusRejected))
}

func TestDeliveredIsTerminal(t *testing.T) {
	assert.Error(t, ValidateTransition(constants.RequestStatusDelivered, constants.RequestStatusApproved))
	assert.True(t, IsTerminalStatus(constants.RequestStatusDelivered))
}

func TestSelfTransitionRejected(t *testing.T) {
	// 状态不允许原地踏步
	assert.Error(t, ValidateTransition(constants.RequestStatusApproved, constants.RequestStatusApproved))
}

func TestAdminAssignableStatuses(t *testing.T) {
	assert.True(t, IsAdminAssignableStatus(constants.RequestStatusApproved))
	assert.True(t, IsAdminAssignableStatus(constants.RequestStatusRejected))
	assert.True(t, IsAdminAssignableStatus(constants.RequestStatusProcessed))
	// delivered 只能由交付流程产出
	assert.False(t, IsAdminAssignableStatus(constants.RequestStatusDelivered))
	assert.False(t, IsAdminAssignableStatus(constants.RequestStatusPending))
	assert.False(t, IsAdminAssignableStatus("unknown"))
}
