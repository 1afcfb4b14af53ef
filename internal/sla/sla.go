package sla

import (
	"time"

	"clipline/internal/config"
	"clipline/internal/tasks"
)

// Status classifies how a task is tracking against its stage deadline.
type Status string

const (
	StatusOnTrack Status = "on_track"
	StatusDueSoon Status = "due_soon"
	StatusOverdue Status = "overdue"
)

// Table maps each active stage to how long a task may sit in it.
type Table map[tasks.Stage]time.Duration

// Weights tune the priority score. The score grows monotonically with age in
// stage and with urgency; it orders queues and never authorizes anything.
type Weights struct {
	AgePerHour float64
	DueSoon    float64
	Overdue    float64
	Backlog    float64
}

// Assessment is the derived SLA view of one task at one instant. It is
// recomputed on every read and never persisted as ground truth.
type Assessment struct {
	Deadline      time.Time
	Status        Status
	AgeInStage    time.Duration
	PriorityScore float64
}

// Calculator derives deadlines and priority scores from configuration.
type Calculator struct {
	table         Table
	dueSoonWindow time.Duration
	weights       Weights
}

// NewCalculator builds a Calculator from application config.
func NewCalculator(cfg *config.Config) *Calculator {
	return &Calculator{
		table: Table{
			tasks.StageNotRecorded: time.Duration(cfg.SLA.NotRecordedHours) * time.Hour,
			tasks.StageRecorded:    time.Duration(cfg.SLA.RecordedHours) * time.Hour,
			tasks.StageEdited:      time.Duration(cfg.SLA.EditedHours) * time.Hour,
			tasks.StageReadyToPost: time.Duration(cfg.SLA.ReadyToPostHours) * time.Hour,
		},
		dueSoonWindow: time.Duration(cfg.SLA.DueSoonWindowMins) * time.Minute,
		weights: Weights{
			AgePerHour: cfg.SLA.AgeWeightPerHour,
			DueSoon:    cfg.SLA.DueSoonWeight,
			Overdue:    cfg.SLA.OverdueWeight,
			Backlog:    cfg.SLA.BacklogWeight,
		},
	}
}

// New builds a Calculator from explicit parts, mostly for tests.
func New(table Table, dueSoonWindow time.Duration, weights Weights) *Calculator {
	return &Calculator{table: table, dueSoonWindow: dueSoonWindow, weights: weights}
}

// Assess computes the SLA view of a stage at the given instant. Terminal
// stages have no deadline and always read on-track with a zero score
// contribution from urgency.
func (c *Calculator) Assess(stage tasks.Stage, lastStatusChangedAt, now time.Time) Assessment {
	age := now.Sub(lastStatusChangedAt)
	if age < 0 {
		age = 0
	}

	budget, tracked := c.table[stage]
	if !tracked {
		return Assessment{
			Status:        StatusOnTrack,
			AgeInStage:    age,
			PriorityScore: c.score(age, StatusOnTrack, 0),
		}
	}

	deadline := lastStatusChangedAt.Add(budget)
	status := StatusOnTrack
	switch {
	case now.After(deadline):
		status = StatusOverdue
	case deadline.Sub(now) < c.dueSoonWindow:
		status = StatusDueSoon
	}

	return Assessment{
		Deadline:      deadline,
		Status:        status,
		AgeInStage:    age,
		PriorityScore: c.score(age, status, 0),
	}
}

// AssessWithBacklog folds a role-backlog count into the priority score so
// stages piling up sort higher. Backlog affects ordering only.
func (c *Calculator) AssessWithBacklog(stage tasks.Stage, lastStatusChangedAt, now time.Time, backlog int) Assessment {
	assessment := c.Assess(stage, lastStatusChangedAt, now)
	assessment.PriorityScore = c.score(assessment.AgeInStage, assessment.Status, backlog)
	return assessment
}

func (c *Calculator) score(age time.Duration, status Status, backlog int) float64 {
	score := age.Hours() * c.weights.AgePerHour
	switch status {
	case StatusDueSoon:
		score += c.weights.DueSoon
	case StatusOverdue:
		score += c.weights.Overdue
	}
	if backlog > 0 {
		score += float64(backlog) * c.weights.Backlog
	}
	return score
}
