package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	"tca/internal/models"
)

// Summarizer condenses recent conversation turns into profile-ready text.
// The production implementation is expected to sit on an external model;
// HeuristicSummarizer is the built-in stand-in.
type Summarizer interface {
	Summarize(turns []models.Turn) (string, error)
}

// turnsWindow caps how much history one summary considers.
const turnsWindow = 20

// HeuristicSummarizer produces a cheap extractive summary: turn count plus
// the opening and latest user statements.
type HeuristicSummarizer struct{}

// Summarize implements Summarizer.
func (HeuristicSummarizer) Summarize(turns []models.Turn) (string, error) {
	if len(turns) == 0 {
		return "", nil
	}
	recent := turns
	if len(recent) > turnsWindow {
		recent = recent[len(recent)-turnsWindow:]
	}
	parts := []string{fmt.Sprintf("%d turns reviewed", len(recent))}
	if first := strings.TrimSpace(recent[0].User); first != "" {
		parts = append(parts, "opened with: "+clip(first, 120))
	}
	if last := strings.TrimSpace(recent[len(recent)-1].User); last != "" && len(recent) > 1 {
		parts = append(parts, "most recently: "+clip(last, 120))
	}
	return strings.Join(parts, "; "), nil
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// ActiveTurnsFunc reports the conversations to sweep: user id -> turns.
type ActiveTurnsFunc func() map[string][]models.Turn

// SummaryService generates conversation summaries out-of-band and persists
// them onto the user record (conversation_summary + last_summary_update,
// last-write-wins).
type SummaryService struct {
	users      *UserContextService
	summarizer Summarizer
	scheduler  gocron.Scheduler
}

// NewSummaryService creates the summary service.
func NewSummaryService(users *UserContextService, summarizer Summarizer) *SummaryService {
	return &SummaryService{users: users, summarizer: summarizer}
}

// SaveSummary summarizes the turns and merges the result into the user
// record.
func (s *SummaryService) SaveSummary(ctx context.Context, userID string, turns []models.Turn) error {
	summary, err := s.summarizer.Summarize(turns)
	if err != nil {
		return fmt.Errorf("summary generation failed: %w", err)
	}
	if summary == "" {
		return nil
	}
	return s.users.MergeUpdate(ctx, userID, map[string]any{
		"conversation_summary": summary,
		"last_summary_update":  models.FormatTime(time.Now()),
	})
}

// Start launches the periodic sweep over active conversations.
func (s *SummaryService) Start(interval time.Duration, active ActiveTurnsFunc) error {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("failed to create summary scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.sweep(active) }),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule summary job: %w", err)
	}
	s.scheduler = scheduler
	scheduler.Start()
	log.Printf("🕒 Summary job scheduled every %s", interval)
	return nil
}

// Stop shuts the scheduler down.
func (s *SummaryService) Stop() {
	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			log.Printf("⚠️ Summary scheduler shutdown: %v", err)
		}
	}
}

func (s *SummaryService) sweep(active ActiveTurnsFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for userID, turns := range active() {
		if len(turns) == 0 {
			continue
		}
		if err := s.SaveSummary(ctx, userID, turns); err != nil {
			log.Printf("⚠️ Failed to save summary for %s: %v", userID, err)
		}
	}
}
