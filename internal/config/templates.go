package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Platform Scanner Configuration

[scan]
# Window sizes in trading days; a stock qualifies if any window passes
windows = [20, 30, 60]
# Stop evaluating a window after the first failing filter
short_circuit = true
# Number of candidates to return (0 = all)
expected_count = 10
# Spread the returned candidates across industries
industry_diversity = false

# Price consolidation
use_price_analysis = true
box_threshold = 0.5
ma_diff_threshold = 0.03
volatility_threshold = 0.09

# Volume behaviour
use_volume_analysis = true
volume_change_threshold = 0.9
volume_stability_threshold = 0.75
volume_increase_threshold = 1.5

# Historical position (decline from the one-year high)
use_low_position = true
high_point_lookback_days = 365
decline_period_days = 180
decline_threshold = 0.3

# Rapid decline
use_rapid_decline_detection = true
rapid_decline_days = 30
rapid_decline_threshold = 0.15

# Box / support-resistance
use_box_detection = true
box_quality_threshold = 0.6

# Breakthrough
use_breakthrough_prediction = false
use_breakthrough_confirmation = false
breakthrough_confirmation_days = 1

# Fundamentals (industry percentiles)
use_fundamental_filter = false
revenue_growth_percentile = 0.3
profit_growth_percentile = 0.3
roe_percentile = 0.3
liability_percentile = 0.3
pe_percentile = 0.7
pb_percentile = 0.7
fundamental_years_to_check = 3

# Window weights
use_window_weights = false
# [scan.window_weights]
# 20 = 0.5
# 60 = 0.5

# Execution
max_workers = 5
retry_attempts = 2
retry_delay = 1

[server]
addr = ":8000"
shutdown_timeout = "10s"

[storage]
# db_path = "~/.config/platform-scanner/scanner.db"

[redis]
enabled = false
addr = "localhost:6379"
db = 0
ttl = "5m"
namespace = "series"

[breaker]
# Stop calling the series source after this many consecutive failures
enabled = true
failure_threshold = 10
success_threshold = 2
cooldown = "30s"

[jobs]
# Finished scan jobs are removed after this long
ttl = "1h"
janitor_interval = "10m"

[logging]
level = "info"
console = true
file = true
max_size = 50
max_backups = 5
max_age = 14
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
