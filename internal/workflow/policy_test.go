package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/citizen-booking/internal/apperr"
	"github.com/iliyamo/citizen-booking/internal/lifecycle"
	"github.com/iliyamo/citizen-booking/internal/model"
)

func intp(v int) *int { return &v }

func TestAdvanceWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC)
	svc := &model.Service{MinDaysInAdvance: intp(7), MaxDaysInAdvance: intp(15)}

	cases := []struct {
		days int
		ok   bool
	}{
		{0, false},
		{6, false},
		{7, true},
		{8, true},
		{15, true},
		{16, false},
	}
	for _, tc := range cases {
		start := time.Date(2026, 3, 10+tc.days, 9, 0, 0, 0, time.UTC)
		err := CheckAdvanceWindow(svc, start, now)
		if tc.ok {
			assert.NoError(t, err, "today+%d", tc.days)
			continue
		}
		assert.Equal(t, []apperr.Code{apperr.CodeNoAvailableServiceProviders}, apperr.CodesOf(err), "today+%d", tc.days)
	}
}

func TestAdvanceWindowUnbounded(t *testing.T) {
	now := time.Now()
	assert.NoError(t, CheckAdvanceWindow(&model.Service{}, now.AddDate(5, 0, 0), now))
	assert.NoError(t, CheckAdvanceWindow(&model.Service{MaxDaysInAdvance: intp(3)}, now, now))
}

func TestInitialStatusGateOrder(t *testing.T) {
	auto := &model.ServiceProvider{AutoAcceptBookings: true}
	manual := &model.ServiceProvider{}

	assert.Equal(t, lifecycle.OnHold, InitialStatus(&model.Service{IsOnHold: true, IsTwoStepApprovalRequired: true}, auto))
	assert.Equal(t, lifecycle.OnHold, InitialStatus(&model.Service{IsStandAlone: true}, auto))
	assert.Equal(t, lifecycle.PendingApprovalSA, InitialStatus(&model.Service{IsTwoStepApprovalRequired: true}, auto))
	assert.Equal(t, lifecycle.Accepted, InitialStatus(&model.Service{}, auto))
	assert.Equal(t, lifecycle.PendingApproval, InitialStatus(&model.Service{}, manual))
	assert.Equal(t, lifecycle.PendingApproval, InitialStatus(&model.Service{}, nil))
}

func TestAfterOnHoldAndAccept(t *testing.T) {
	auto := &model.ServiceProvider{AutoAcceptBookings: true}

	assert.Equal(t, lifecycle.PendingApprovalSA, AfterOnHold(&model.Service{IsTwoStepApprovalRequired: true}, auto))
	assert.Equal(t, lifecycle.Accepted, AfterOnHold(&model.Service{IsOnHold: true}, auto))
	assert.Equal(t, lifecycle.PendingApproval, AfterOnHold(&model.Service{IsOnHold: true}, nil))

	assert.Equal(t, lifecycle.Accepted, AfterAccept(lifecycle.PendingApprovalSA, auto))
	assert.Equal(t, lifecycle.PendingApproval, AfterAccept(lifecycle.PendingApprovalSA, nil))
	assert.Equal(t, lifecycle.Accepted, AfterAccept(lifecycle.PendingApproval, nil))
}

func TestAfterReschedule(t *testing.T) {
	auto := &model.ServiceProvider{AutoAcceptBookings: true}
	manual := &model.ServiceProvider{}
	plain := &model.Service{}
	twoStep := &model.Service{IsTwoStepApprovalRequired: true}

	tests := []struct {
		name     string
		current  lifecycle.Status
		svc      *model.Service
		provider *model.ServiceProvider
		want     lifecycle.Status
	}{
		{"accepted stays accepted on manual provider", lifecycle.Accepted, plain, manual, lifecycle.Accepted},
		{"accepted stays accepted under two-step", lifecycle.Accepted, twoStep, auto, lifecycle.Accepted},
		{"pending advances on auto-accept provider", lifecycle.PendingApproval, plain, auto, lifecycle.Accepted},
		{"pending stays pending on manual provider", lifecycle.PendingApproval, plain, manual, lifecycle.PendingApproval},
		{"agency gate hands over to manual provider", lifecycle.PendingApprovalSA, plain, manual, lifecycle.PendingApproval},
		{"agency gate stays under two-step", lifecycle.PendingApprovalSA, twoStep, manual, lifecycle.PendingApprovalSA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AfterReschedule(tt.current, tt.svc, tt.provider)
			assert.Equal(t, tt.want, got)
			if got != tt.current {
				assert.True(t, lifecycle.CanTransition(tt.current, got))
			}
		})
	}
}

func TestValidateDetailsCollectsAll(t *testing.T) {
	svc := &model.Service{RequireSalutation: true}
	err := ValidateDetails(svc, model.CitizenDetails{CitizenEmail: "nope", CitizenPhone: "12"})
	require.Error(t, err)
	assert.ElementsMatch(t, []apperr.Code{
		apperr.CodeCitizenNameMissing,
		apperr.CodeCitizenEmailInvalid,
		apperr.CodeCitizenPhoneInvalid,
		apperr.CodeSalutationRequired,
	}, apperr.CodesOf(err))

	ok := model.CitizenDetails{CitizenName: "Tan Ah Kow", CitizenEmail: "tan@example.com", CitizenPhone: "+6591234567", CitizenSalutation: "Mr"}
	assert.NoError(t, ValidateDetails(svc, ok))
}

func TestRequiresDetailsAndType(t *testing.T) {
	assert.True(t, RequiresDetails(&model.Service{}))
	assert.False(t, RequiresDetails(&model.Service{IsStandAlone: true}))
	assert.Equal(t, model.WorkflowOnHold, Type(&model.Service{IsOnHold: true}))
	assert.Equal(t, model.WorkflowDefault, Type(&model.Service{}))
}
