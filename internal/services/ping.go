package services

import (
	"context"
	"fmt"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingService проверяет доступность хранилища.
type PingService struct {
	conn Pinger
}

func NewPingService(conn Pinger) *PingService {
	return &PingService{conn: conn}
}

func (s *PingService) CheckConnection(ctx context.Context) error {
	if err := s.conn.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrUnavailable, err)
	}
	return nil
}
