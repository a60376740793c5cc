// Package demo builds the placeholder datasets shown while a real source is
// unavailable. Values are derived from hashes so the same anchor time always
// produces the same rows.
package demo

import (
	"fmt"
	"time"

	"github.com/nes_dashboard/backend/internal/models"
	"github.com/nes_dashboard/backend/internal/normalize"
	"github.com/nes_dashboard/backend/internal/utils"
)

const (
	TicketCount        = 250
	ParticipationCount = 300
)

var (
	statuses     = []string{"Open", "Closed", "In Progress"}
	priorities   = []string{"High", "Medium", "Low"}
	ticketTypes  = []string{"Hardware Repair", "Software Update", "Network Issue", "Electrical", "Air Conditioning", "Security System", "Plumbing", "General Maintenance"}
	phases       = []string{"Phase 1", "Phase 2", "Phase 3", "Phase 4", "Phase 5"}
	states       = []string{"Selangor", "Kuala Lumpur", "Johor", "Penang", "Sarawak", "Sabah", "Perak", "Pahang"}
	nadis        = []string{"NADI Centrum", "NADI Taman", "NADI Komuniti", "NADI Bandar", "NADI Desa"}
	tps          = []string{"TP Alpha", "TP Beta", "TP Gamma", "TP Delta"}
	dusps        = []string{"DUSP One", "DUSP Two", "DUSP Three", "DUSP Four"}
	requesters   = []string{"Ahmad Razak", "Siti Nurhaliza", "John Tan", "Mary Lee", "Raj Kumar", "Nurul Aina"}
	descriptions = []string{
		"Equipment malfunction requiring immediate attention",
		"Routine maintenance check and servicing",
		"System upgrade and configuration update",
		"Preventive maintenance scheduled work",
		"Emergency repair due to component failure",
		"Performance optimization and tuning",
	}

	programs   = []string{"Digital Literacy", "eUsahawan", "Smart Farming", "Cyber Safety", "Coding for Kids"}
	categories = []string{"Entrepreneur", "Lifelong Learning", "Wellbeing", "Awareness"}
	ageGroups  = []string{"Below 18", "18-35", "36-59", "60 and above"}
	dayParts   = []string{"Morning", "Afternoon", "Evening"}

	regions = map[string]string{
		"Selangor": "Central", "Kuala Lumpur": "Central", "Johor": "Southern", "Penang": "Northern",
		"Sarawak": "East Malaysia", "Sabah": "East Malaysia", "Perak": "Northern", "Pahang": "East Coast",
	}

	coords = map[string][2]float64{
		"Selangor": {3.0738, 101.5183}, "Kuala Lumpur": {3.1390, 101.6869}, "Johor": {1.4927, 103.7414},
		"Penang": {5.4141, 100.3288}, "Sarawak": {1.5533, 110.3592}, "Sabah": {5.9804, 116.0735},
		"Perak": {4.5975, 101.0901}, "Pahang": {3.8077, 103.3260},
	}
)

// Tickets returns TicketCount maintenance tickets registered within the year
// before now.
func Tickets(now time.Time) []models.Ticket {
	now = now.UTC()
	out := make([]models.Ticket, 0, TicketCount)
	for i := 0; i < TicketCount; i++ {
		ref := fmt.Sprintf("MCMC-%05d", i+1)
		h := utils.Seed(ref)

		reg := now.Add(-time.Duration(h%(365*24)) * time.Hour).Truncate(time.Second)
		upd := reg.Add(time.Duration((h/31)%(30*24)) * time.Hour)

		out = append(out, models.Ticket{
			Title:           fmt.Sprintf("Maintenance ticket %d", i+1),
			Description:     utils.Pick(descriptions, h, 3),
			ReferenceID:     ref,
			Nadi:            utils.Pick(nadis, h, 5),
			State:           utils.Pick(states, h, 7),
			TP:              utils.Pick(tps, h, 11),
			DUSP:            utils.Pick(dusps, h, 13),
			Status:          utils.Pick(statuses, h, 17),
			Requester:       utils.Pick(requesters, h, 19),
			MaintenanceType: utils.Pick(ticketTypes, h, 23),
			Phase:           utils.Pick(phases, h, 29),
			Priority:        utils.Pick(priorities, h, 37),
			RegisteredDate:  reg.Format(models.DateLayout),
			UpdatedDate:     upd.Format(models.DateLayout),
			RegisteredAt:    models.NewDate(reg),
			UpdatedAt:       models.NewDate(upd),
			RegisteredMonth: normalize.MonthKey(reg),
		})
	}
	return out
}

// Participation returns ParticipationCount participation rows spread over the
// year before now.
func Participation(now time.Time) []models.Participation {
	now = now.UTC()
	out := make([]models.Participation, 0, ParticipationCount)
	for i := 0; i < ParticipationCount; i++ {
		id := fmt.Sprintf("P-%05d", i+1)
		h := utils.Seed(id)

		state := utils.Pick(states, h, 7)
		nadi := fmt.Sprintf("%s %s", utils.Pick(nadis, h, 5), state)
		at := now.Add(-time.Duration(h%(365*24)) * time.Hour).Truncate(time.Hour)
		event := fmt.Sprintf("EV-%03d", (h/41)%60)
		male := float64((h / 43) % 20)
		female := float64((h / 47) % 20)
		target := float64(20 + (h/53)%30)
		total := male + female

		status := "Non-Member"
		member := ""
		if h%3 != 0 {
			status = "Member"
			member = fmt.Sprintf("M-%05d", (h/59)%200)
		}
		targetStatus := "Below Target"
		if total >= target {
			targetStatus = "Achieved"
		}

		out = append(out, models.Participation{
			ParticipantID:      id,
			MemberID:           member,
			EventID:            event,
			ProgramName:        utils.Pick(programs, h, 61),
			CategoryName:       utils.Pick(categories, h, 67),
			OrganizationName:   utils.Pick(dusps, h, 13),
			SSOName:            utils.Pick(tps, h, 11),
			NadiName:           nadi,
			SiteName:           nadi,
			StateName:          state,
			RegionName:         regions[state],
			MembershipStatus:   status,
			TargetStatus:       targetStatus,
			TimeOfDay:          utils.Pick(dayParts, h, 71),
			AgeGroup:           utils.Pick(ageGroups, h, 73),
			EventDate:          at.Format(models.DateLayout),
			EventAt:            models.NewDate(at),
			EventYear:          at.Year(),
			EventMonth:         int(at.Month()),
			EventMonthName:     at.Month().String(),
			EventQuarter:       fmt.Sprintf("Q%d", (int(at.Month())-1)/3+1),
			EventMonthKey:      normalize.MonthKey(at),
			DurationHours:      float64(1 + (h/79)%4),
			TotalParticipants:  total,
			TargetParticipants: target,
			AttendanceRate:     float64(50 + (h/83)%51),
			TargetAchievement:  total * 100 / target,
			NewMembers:         float64((h / 89) % 5),
			AvgParticipantAge:  float64(18 + (h/97)%45),
			MaleCount:          male,
			FemaleCount:        female,
			Latitude:           coords[state][0],
			Longitude:          coords[state][1],
		})
	}
	return out
}
