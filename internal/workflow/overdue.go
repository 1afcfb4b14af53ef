package workflow

import (
	"context"
	"time"

	"clipline/internal/logging"
	"clipline/internal/sla"
	"clipline/internal/tasks"
)

// OverdueReport summarizes one overdue scan pass.
type OverdueReport struct {
	Scanned    int
	Overdue    int
	DueSoon    int
	WorstTitle string
	WorstAge   time.Duration
}

func (m *Manager) scanOverdue(ctx context.Context) error {
	report, err := m.OverdueReport(ctx)
	m.mu.Lock()
	m.lastOverdueScan = time.Now().UTC()
	m.mu.Unlock()
	if err != nil {
		m.logger.Warn("overdue scan failed", logging.Error(err))
		m.notifyError(ctx, err, "overdue scan")
		return err
	}
	if report.Overdue == 0 {
		return nil
	}
	m.logger.Warn("tasks past stage deadline",
		logging.Int("overdue", report.Overdue),
		logging.Int("due_soon", report.DueSoon),
		logging.String("worst", report.WorstTitle),
		logging.Duration("worst_age", report.WorstAge),
	)
	if err := m.notifier.NotifyOverdueTasks(ctx, report.Overdue, report.WorstTitle, report.WorstAge); err != nil {
		m.logger.Warn("overdue notification failed", logging.Error(err))
	}
	return nil
}

// OverdueReport assesses every non-terminal task against its stage deadline.
func (m *Manager) OverdueReport(ctx context.Context) (OverdueReport, error) {
	var report OverdueReport
	var active []tasks.Stage
	for _, st := range tasks.AllStages() {
		if !st.Terminal() {
			active = append(active, st)
		}
	}
	list, err := m.store.List(ctx, tasks.Filter{Stages: active})
	if err != nil {
		return report, err
	}

	now := time.Now().UTC()
	for _, task := range list {
		report.Scanned++
		assessment := m.calc.Assess(task.Stage, task.LastStatusChangedAt, now)
		switch assessment.Status {
		case sla.StatusDueSoon:
			report.DueSoon++
		case sla.StatusOverdue:
			report.Overdue++
			if assessment.AgeInStage > report.WorstAge {
				report.WorstAge = assessment.AgeInStage
				report.WorstTitle = task.Title
			}
		}
	}
	return report, nil
}
