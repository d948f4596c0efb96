package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListingStatusTransitions(t *testing.T) {
	assert.True(t, ListingStatusPending.CanTransitionTo(ListingStatusApproved))
	assert.True(t, ListingStatusPending.CanTransitionTo(ListingStatusRejected))
	assert.True(t, ListingStatusRejected.CanTransitionTo(ListingStatusPending))

	assert.False(t, ListingStatusApproved.CanTransitionTo(ListingStatusRejected))
	assert.False(t, ListingStatusApproved.CanTransitionTo(ListingStatusPending))
	assert.False(t, ListingStatusPending.CanTransitionTo(ListingStatusPending))
	assert.False(t, ListingStatusPending.CanTransitionTo("archived"))
}

func TestRequestStatusTransitions(t *testing.T) {
	for _, from := range []RequestStatus{RequestStatusPending, RequestStatusApproved, RequestStatusRejected} {
		assert.True(t, from.CanTransitionTo(RequestStatusClosed), "close from %s", from)
		assert.False(t, from.IsTerminal())
	}

	assert.True(t, RequestStatusClosed.IsTerminal())
	for _, to := range []RequestStatus{RequestStatusPending, RequestStatusApproved, RequestStatusRejected, RequestStatusClosed} {
		assert.False(t, RequestStatusClosed.CanTransitionTo(to), "closed -> %s", to)
	}

	assert.False(t, RequestStatusApproved.CanTransitionTo(RequestStatusRejected))
}

func TestMatchStatusTransitions(t *testing.T) {
	assert.True(t, MatchStatusPending.CanTransitionTo(MatchStatusAccepted))
	assert.True(t, MatchStatusPending.CanTransitionTo(MatchStatusRejected))
	assert.True(t, MatchStatusAccepted.CanTransitionTo(MatchStatusClosed))
	assert.False(t, MatchStatusRejected.CanTransitionTo(MatchStatusAccepted))
	assert.False(t, MatchStatusClosed.CanTransitionTo(MatchStatusPending))
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("root").Valid())
	assert.True(t, ListingStatusApproved.Valid())
	assert.False(t, ListingStatus("closed").Valid())
	assert.True(t, RequestStatusClosed.Valid())
	assert.False(t, RequestStatus("").Valid())
	assert.True(t, MatchStatusAccepted.Valid())
	assert.True(t, FileTypeDocument.Valid())
	assert.False(t, FileType("audio").Valid())
}

func TestFileHasSingleOwner(t *testing.T) {
	id := int64(1)

	assert.True(t, (&File{RequestID: &id}).HasSingleOwner())
	assert.True(t, (&File{ListingID: &id}).HasSingleOwner())
	assert.False(t, (&File{}).HasSingleOwner())
	assert.False(t, (&File{RequestID: &id, ListingID: &id}).HasSingleOwner())
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "Ann Lee", (&User{FirstName: "Ann", LastName: "Lee"}).DisplayName())
	assert.Equal(t, "Ann", (&User{FirstName: "Ann"}).DisplayName())
	assert.Equal(t, "@ann", (&User{Username: "ann"}).DisplayName())
	assert.Equal(t, "user", (&User{}).DisplayName())
	assert.True(t, (&User{Role: RoleAdmin}).IsAdmin())
}
