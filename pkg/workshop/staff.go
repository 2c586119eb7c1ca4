package workshop

import (
	"maps"
	"strings"
	"time"

	"github.com/wilhg/workshop/pkg/counters"
)

// Role of a staff member.
type Role string

const (
	RoleMechanic  Role = "mechanic"
	RoleAttendant Role = "attendant"
	RoleManager   Role = "manager"
)

// StaffMember is an employee of the workshop.
type StaffMember struct {
	ID      uint64    `json:"id"`
	Name    string    `json:"name"`
	Role    Role      `json:"role"`
	HiredAt time.Time `json:"hired_at"`
	Active  bool      `json:"active"`
}

// StaffBase holds every staff member, active or not.
type StaffBase struct {
	Members map[uint64]StaffMember `json:"members"`
}

func NewStaffBase() *StaffBase {
	return &StaffBase{Members: make(map[uint64]StaffMember)}
}

func (s *StaffBase) Clone() *StaffBase {
	if s == nil {
		return nil
	}
	return &StaffBase{Members: maps.Clone(s.Members)}
}

// Hire adds an active staff member.
func (s *StaffBase) Hire(ids counters.IDSource, name string, role Role, at time.Time) (StaffMember, error) {
	if strings.TrimSpace(name) == "" {
		return StaffMember{}, invalid("name_required", "staff name is required")
	}
	switch role {
	case RoleMechanic, RoleAttendant, RoleManager:
	default:
		return StaffMember{}, invalid("bad_role", "unknown staff role")
	}
	m := StaffMember{ID: ids.Next(counters.KindStaffMember), Name: name, Role: role, HiredAt: at, Active: true}
	s.Members[m.ID] = m
	return m, nil
}

// Dismiss marks a staff member inactive. The record is kept for history.
func (s *StaffBase) Dismiss(id uint64) error {
	m, ok := s.Members[id]
	if !ok {
		return notFound("staff member", id)
	}
	m.Active = false
	s.Members[id] = m
	return nil
}
