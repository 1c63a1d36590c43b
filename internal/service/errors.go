package service

import "errors"

// 定义公共错误类型，用于整个服务
var (
	ErrStorageNotInit     = errors.New("storage is not initialized")           // 存储未初始化错误
	ErrRequestNotFound    = errors.New("cv request not found")                 // CV请求不存在
	ErrCompanyNotFound    = errors.New("company not found")                    // 公司不存在
	ErrCVNotFound         = errors.New("cv not found")                         // CV不存在
	ErrFeatureNotFound    = errors.New("cv features not found")                // CV特征记录不存在
	ErrRequestNotApproved = errors.New("cv request is not approved")           // 请求未处于可匹配状态，不能触发匹配
	ErrInvalidTransition  = errors.New("invalid cv request status transition") // 非法的状态流转
	ErrMatchingInProgress = errors.New("matching already in progress")         // 同一请求的匹配运行已被其他进程持有
	ErrValidation         = errors.New("validation failed")                    // 请求参数校验失败
)
