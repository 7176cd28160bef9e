package mocks

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/stretchr/testify/mock"
)

// MockStateMachineAPI is a mock implementation of registrar.StateMachineAPI.
type MockStateMachineAPI struct {
	mock.Mock
}

func (m *MockStateMachineAPI) CreateStateMachine(ctx context.Context, params *sfn.CreateStateMachineInput, _ ...func(*sfn.Options)) (*sfn.CreateStateMachineOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*sfn.CreateStateMachineOutput), args.Error(1)
}

func (m *MockStateMachineAPI) UpdateStateMachine(ctx context.Context, params *sfn.UpdateStateMachineInput, _ ...func(*sfn.Options)) (*sfn.UpdateStateMachineOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*sfn.UpdateStateMachineOutput), args.Error(1)
}

func (m *MockStateMachineAPI) DeleteStateMachine(ctx context.Context, params *sfn.DeleteStateMachineInput, _ ...func(*sfn.Options)) (*sfn.DeleteStateMachineOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*sfn.DeleteStateMachineOutput), args.Error(1)
}

// MockRuleAPI is a mock implementation of registrar.RuleAPI.
type MockRuleAPI struct {
	mock.Mock
}

func (m *MockRuleAPI) PutRule(ctx context.Context, params *eventbridge.PutRuleInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutRuleOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*eventbridge.PutRuleOutput), args.Error(1)
}

func (m *MockRuleAPI) PutTargets(ctx context.Context, params *eventbridge.PutTargetsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutTargetsOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*eventbridge.PutTargetsOutput), args.Error(1)
}

func (m *MockRuleAPI) RemoveTargets(ctx context.Context, params *eventbridge.RemoveTargetsInput, _ ...func(*eventbridge.Options)) (*eventbridge.RemoveTargetsOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*eventbridge.RemoveTargetsOutput), args.Error(1)
}

func (m *MockRuleAPI) DeleteRule(ctx context.Context, params *eventbridge.DeleteRuleInput, _ ...func(*eventbridge.Options)) (*eventbridge.DeleteRuleOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*eventbridge.DeleteRuleOutput), args.Error(1)
}

// MockScheduleAPI is a mock implementation of registrar.ScheduleAPI.
type MockScheduleAPI struct {
	mock.Mock
}

func (m *MockScheduleAPI) CreateSchedule(ctx context.Context, params *scheduler.CreateScheduleInput, _ ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*scheduler.CreateScheduleOutput), args.Error(1)
}

func (m *MockScheduleAPI) UpdateSchedule(ctx context.Context, params *scheduler.UpdateScheduleInput, _ ...func(*scheduler.Options)) (*scheduler.UpdateScheduleOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*scheduler.UpdateScheduleOutput), args.Error(1)
}

func (m *MockScheduleAPI) DeleteSchedule(ctx context.Context, params *scheduler.DeleteScheduleInput, _ ...func(*scheduler.Options)) (*scheduler.DeleteScheduleOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*scheduler.DeleteScheduleOutput), args.Error(1)
}
