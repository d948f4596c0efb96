// internal/models/common.go
package models

import (
	"time"
)

// Base model with common fields
type BaseModel struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Enums
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type ListingStatus string

const (
	ListingStatusPending  ListingStatus = "pending"
	ListingStatusApproved ListingStatus = "approved"
	ListingStatusRejected ListingStatus = "rejected"
)

var listingTransitions = map[ListingStatus][]ListingStatus{
	ListingStatusPending:  {ListingStatusApproved, ListingStatusRejected},
	ListingStatusRejected: {ListingStatusPending},
}

func (s ListingStatus) Valid() bool {
	switch s {
	case ListingStatusPending, ListingStatusApproved, ListingStatusRejected:
		return true
	}
	return false
}

func (s ListingStatus) CanTransitionTo(next ListingStatus) bool {
	return contains(listingTransitions[s], next)
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
	RequestStatusClosed   RequestStatus = "closed"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:  {RequestStatusApproved, RequestStatusRejected, RequestStatusClosed},
	RequestStatusApproved: {RequestStatusClosed},
	RequestStatusRejected: {RequestStatusPending, RequestStatusClosed},
}

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected, RequestStatusClosed:
		return true
	}
	return false
}

// Closed is the only terminal request state.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusClosed
}

func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	return contains(requestTransitions[s], next)
}

type MatchStatus string

const (
	MatchStatusPending  MatchStatus = "pending"
	MatchStatusAccepted MatchStatus = "accepted"
	MatchStatusRejected MatchStatus = "rejected"
	MatchStatusClosed   MatchStatus = "closed"
)

var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchStatusPending:  {MatchStatusAccepted, MatchStatusRejected, MatchStatusClosed},
	MatchStatusAccepted: {MatchStatusClosed},
}

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusPending, MatchStatusAccepted, MatchStatusRejected, MatchStatusClosed:
		return true
	}
	return false
}

func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	return contains(matchTransitions[s], next)
}

type HelpStatus string

const (
	HelpStatusPending  HelpStatus = "pending"
	HelpStatusAnswered HelpStatus = "answered"
)

type FileType string

const (
	FileTypePhoto    FileType = "photo"
	FileTypeVideo    FileType = "video"
	FileTypeDocument FileType = "document"
)

func (t FileType) Valid() bool {
	switch t {
	case FileTypePhoto, FileTypeVideo, FileTypeDocument:
		return true
	}
	return false
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
