package api

import (
	"context"

	"github.com/roundcast/roundcast/internal/models"
)

// Predictor is the service surface both transports expose.
type Predictor interface {
	Cycle(ctx context.Context, strategy string) (models.CycleResponse, error)
	History() []models.RoundRecord
	Capacity() int
	Strategies() []string
}

// HistoryResponse is the payload of the history endpoints.
type HistoryResponse struct {
	Capacity int                  `json:"capacity"`
	Size     int                  `json:"size"`
	Rounds   []models.RoundRecord `json:"rounds"`
}

func historyResponse(p Predictor) HistoryResponse {
	rounds := p.History()
	if rounds == nil {
		rounds = []models.RoundRecord{}
	}
	return HistoryResponse{Capacity: p.Capacity(), Size: len(rounds), Rounds: rounds}
}
