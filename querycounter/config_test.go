package querycounter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/query-counter-go/querycounter"
)

func Test_AnalysisConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      querycounter.AnalysisConfig
		expectedErr error
	}{
		{
			name:   "defaults_are_valid",
			config: querycounter.DefaultAnalysisConfig(),
		},
		{
			name:        "negative_threshold",
			config:      querycounter.AnalysisConfig{AlertThreshold: -1},
			expectedErr: querycounter.ErrNegativeAlertThreshold,
		},
		{
			name:        "negative_max_frames",
			config:      querycounter.AnalysisConfig{MaxReportFrames: -3},
			expectedErr: querycounter.ErrNegativeMaxReportFrames,
		},
		{
			name:        "heuristics_without_paths",
			config:      querycounter.AnalysisConfig{HeuristicsEnabled: true},
			expectedErr: querycounter.ErrHeuristicPathsRequired,
		},
		{
			name:        "unknown_dialect",
			config:      querycounter.AnalysisConfig{Dialect: "oracle"},
			expectedErr: querycounter.ErrUnknownDialect,
		},
		{
			name:   "empty_dialect_is_valid",
			config: querycounter.AnalysisConfig{},
		},
		{
			name:   "heuristic_paths_without_heuristics_are_ignored",
			config: querycounter.AnalysisConfig{HeuristicPaths: []string{"app/"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// act
			err := tt.config.Validate()

			// assert
			if tt.expectedErr == nil {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, querycounter.ErrInvalidConfiguration)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func Test_WithAnalysisConfig_LaterOptionsApplyOnTop(t *testing.T) {
	// arrange
	base := querycounter.DefaultAnalysisConfig()
	base.AlertThreshold = 7
	base.LogNoAlert = true

	// act
	qc, err := querycounter.NewQueryCounter(
		querycounter.NewEventBus(),
		querycounter.WithAnalysisConfig(base),
		querycounter.WithAlertThreshold(3),
		querycounter.WithHeuristicPaths("app/models"),
	)

	// assert
	assert.NoError(t, err)
	config := qc.Config()
	assert.Equal(t, 3, config.AlertThreshold)
	assert.True(t, config.LogNoAlert)
	assert.True(t, config.HeuristicsEnabled)
	assert.Equal(t, []string{"app/models"}, config.HeuristicPaths)
}
