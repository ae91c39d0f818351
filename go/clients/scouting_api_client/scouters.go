package scouting_api_client

import (
	"context"
	"fmt"

	"github.com/mcdev12/astraea/go/internal/models"
)

// GetScouters returns scouter accounts keyed by username.
func (c *ScoutingApiClient) GetScouters(ctx context.Context) (map[string]models.Scouter, error) {
	scouters := make(map[string]models.Scouter)
	if _, err := c.fetchJSON(ctx, ScoutersEndpoint, &scouters); err != nil {
		return nil, fmt.Errorf("failed to get scouters: %w", err)
	}
	return scouters, nil
}

// GetScouterStats returns assignment counts keyed by username.
func (c *ScoutingApiClient) GetScouterStats(ctx context.Context) (map[string]models.ScouterStats, error) {
	stats := make(map[string]models.ScouterStats)
	if _, err := c.fetchJSON(ctx, ScouterStatsEndpoint, &stats); err != nil {
		return nil, fmt.Errorf("failed to get scouter stats: %w", err)
	}
	return stats, nil
}
