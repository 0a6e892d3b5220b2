package main

import (
	"context"
	"time"
)

// runOverdueScans flags overdue loans once at startup and then every
// interval until ctx is cancelled.
func (s *Server) runOverdueScans(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.scanOverdue(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) scanOverdue(ctx context.Context) {
	n, err := s.ledger.FlagOverdueLoans(ctx)
	if err != nil {
		s.logger.Error("overdue scan failed", "err", err)
		return
	}
	s.logger.Info("overdue scan complete", "flagged", n)
}
