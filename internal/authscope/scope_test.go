package authscope

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/citizen-booking/internal/model"
)

func ptr(v int64) *int64 { return &v }

func booking(providerID *int64, serviceID, orgID int64) *model.Booking {
	return &model.Booking{ServiceProviderID: providerID, ServiceID: serviceID, OrganisationID: orgID}
}

func TestVisibilityPredicateUnion(t *testing.T) {
	p := VisibilityPredicate(ServiceProvider(3), ServiceAdmin(10, 11), OrganisationAdmin(7), ServiceAdmin(11))
	assert.Equal(t, []int64{3}, p.ServiceProviderIDs)
	assert.Equal(t, []int64{10, 11}, p.ServiceIDs)
	assert.Equal(t, []int64{7}, p.OrganisationIDs)
	assert.False(t, p.All)

	assert.True(t, p.Matches(booking(ptr(3), 99, 99)))
	assert.True(t, p.Matches(booking(nil, 11, 99)))
	assert.True(t, p.Matches(booking(nil, 99, 7)))
	assert.False(t, p.Matches(booking(ptr(4), 12, 8)))
}

func TestVisibilityPredicateEdges(t *testing.T) {
	assert.True(t, VisibilityPredicate().Empty())
	assert.True(t, VisibilityPredicate(Anonymous("s1", false), Citizen("u1", "S1234567A")).Empty())
	assert.True(t, VisibilityPredicate(ServiceProvider(1), Agency()).All)
}

func TestServiceProviderOnlyOwnBookings(t *testing.T) {
	g := ServiceProvider(5)
	own := booking(ptr(5), 1, 1)
	other := booking(ptr(6), 1, 1)
	unassigned := booking(nil, 1, 1)

	for _, op := range []Operation{OpRead, OpUpdate, OpCancel, OpApprove} {
		assert.True(t, HasPermission(g, own, op), op.String())
		assert.False(t, HasPermission(g, other, op), op.String())
		assert.False(t, HasPermission(g, unassigned, op), op.String())
	}
}

func TestAnonymousPermissions(t *testing.T) {
	g := Anonymous("sess-1", false)
	b := &model.Booking{CreatorRef: "sess-1", CreatorType: model.CreatorAnonymous, WorkflowType: model.WorkflowDefault}

	assert.True(t, HasPermission(g, b, OpRead))
	assert.True(t, HasPermission(g, b, OpUpdate))
	assert.False(t, HasPermission(g, b, OpCancel), "default workflow bookings are not cancellable anonymously")
	assert.False(t, HasPermission(g, b, OpApprove))

	b.WorkflowType = model.WorkflowOnHold
	assert.True(t, HasPermission(g, b, OpCancel))

	assert.False(t, HasPermission(Anonymous("sess-2", false), b, OpRead))
}

func TestCitizenPermissions(t *testing.T) {
	g := Citizen("user-1", "S1234567A")
	mine := &model.Booking{CreatorRef: "user-1", CreatorType: model.CreatorCitizen}
	byUin := &model.Booking{CreatorRef: "admin", CreatorType: model.CreatorAdmin, CitizenUinFin: "S1234567A"}
	other := &model.Booking{CreatorRef: "user-2", CreatorType: model.CreatorCitizen}

	assert.True(t, HasPermission(g, mine, OpCancel))
	assert.True(t, HasPermission(g, byUin, OpRead))
	assert.False(t, HasPermission(g, mine, OpApprove))
	assert.False(t, HasPermission(g, other, OpRead))
}

func TestHasAnyPermissionIsOr(t *testing.T) {
	b := booking(ptr(9), 20, 30)
	assert.False(t, HasAnyPermission([]Group{ServiceProvider(1), ServiceAdmin(21)}, b, OpApprove))
	assert.True(t, HasAnyPermission([]Group{ServiceProvider(1), OrganisationAdmin(30)}, b, OpApprove))
	assert.True(t, HasAnyPermission([]Group{Agency()}, b, OpApprove))
	assert.False(t, HasAnyPermission(nil, b, OpRead))
}

func TestCallerActorAndCreator(t *testing.T) {
	anon := Caller{Groups: []Group{Anonymous("sess-9", true)}}
	assert.Equal(t, model.Actor{Ref: "sess-9", Type: "anonymous"}, anon.Actor())
	ref, typ := anon.CreatorRef()
	assert.Equal(t, "sess-9", ref)
	assert.Equal(t, model.CreatorAnonymous, typ)

	admin := Caller{Ref: "admin-1", Groups: []Group{Citizen("admin-1", ""), ServiceAdmin(1)}}
	assert.Equal(t, "service_admin", admin.Actor().Type)
	_, typ = admin.CreatorRef()
	assert.Equal(t, model.CreatorAdmin, typ)
	assert.True(t, admin.IsPrivileged())
}

func TestGroupValidate(t *testing.T) {
	assert.NoError(t, ServiceAdmin(1).Validate())
	assert.Error(t, Group{Kind: KindAnonymous}.Validate())
	assert.Error(t, Group{Kind: "root"}.Validate())
}
