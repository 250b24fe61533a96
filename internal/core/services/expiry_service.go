package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// ExpiryService batch-expires overdue cards on a schedule. The lazy check in
// Verify already guarantees correctness for any card that gets read; the
// sweep keeps stored statuses honest for cards nobody touches, so listing
// and reporting see EXPIRED without a verify round-trip.
type ExpiryService struct {
	cardService *CardService
	cron        *cron.Cron
}

// NewExpiryService creates a new expiry sweeper
func NewExpiryService(cardService *CardService) *ExpiryService {
	return &ExpiryService{
		cardService: cardService,
		cron:        cron.New(),
	}
}

// Start schedules the nightly sweep (00:05 server time) and runs one sweep
// immediately so a long-stopped server catches up on boot
func (s *ExpiryService) Start() {
	s.sweep()

	if _, err := s.cron.AddFunc("5 0 * * *", s.sweep); err != nil {
		log.Printf("❌ Failed to schedule expiry sweep: %v", err)
		return
	}
	s.cron.Start()
	log.Println("🕐 Expiry sweeper started (daily at 00:05)")
}

// Stop stops the scheduler, waiting for a running sweep to finish
func (s *ExpiryService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("🛑 Expiry sweeper stopped")
}

func (s *ExpiryService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := s.cardService.ExpireOverdue(ctx)
	if err != nil {
		log.Printf("❌ Expiry sweep failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("✅ Expiry sweep: %d card(s) marked EXPIRED", count)
	}
}
