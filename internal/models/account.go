package models

import "time"

// Priority is the collapsed issue priority.
type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// Priorities lists every priority in rank order.
var Priorities = []Priority{PriorityP1, PriorityP2, PriorityP3}

// Status is the collapsed issue status.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Statuses lists every status.
var Statuses = []Status{StatusOpen, StatusClosed}

// ParsePriority accepts the canonical spelling in any case.
func ParsePriority(v string) (Priority, bool) {
	switch Priority(upper(v)) {
	case PriorityP1:
		return PriorityP1, true
	case PriorityP2:
		return PriorityP2, true
	case PriorityP3:
		return PriorityP3, true
	}
	return "", false
}

// ParseStatus accepts the canonical spelling in any case.
func ParseStatus(v string) (Status, bool) {
	switch Status(lower(v)) {
	case StatusOpen:
		return StatusOpen, true
	case StatusClosed:
		return StatusClosed, true
	}
	return "", false
}

// Account is a normalized account/opportunity record.
type Account struct {
	ID            string
	Name          string
	ARR           float64
	Stage         string
	Region        string
	Industry      string
	Owner         string
	RenewalDate   *time.Time
	CustomerSince *time.Time
}

// Issue is a normalized issue-tracker record.
type Issue struct {
	ID          string
	LinkKey     string
	AccountHint string
	Priority    Priority
	Status      Status
	Type        string
	Region      string
	Summary     string
	CreatedDate *time.Time
	DueDate     *time.Time
}

// IsOpen reports whether the issue still counts as open.
func (i Issue) IsOpen() bool {
	return i.Status != StatusClosed
}

// RawRecord is a source row before normalization.
type RawRecord map[string]any
