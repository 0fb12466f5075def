package filters

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/indicators"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
)

// Fundamental metric names.
const (
	MetricRevenueGrowth = "revenue_growth"
	MetricProfitGrowth  = "profit_growth"
	MetricROE           = "roe"
	MetricDebtRatio     = "debt_ratio"
	MetricPE            = "pe"
	MetricPB            = "pb"
)

// PeerUniverse supplies the cross-sectional distribution a stock is ranked
// against. Distribution returns one value per peer that has the metric.
type PeerUniverse interface {
	Size(industry string) int
	Distribution(industry, metric string) []float64
}

// Profile holds one stock's fundamental metrics averaged over the checked
// years. A metric is absent when the stock lacks a consistent record.
type Profile map[string]float64

// BuildProfile averages each annual metric over the latest years. Growth and
// ROE must be positive in every year; debt ratio must be present in every
// year. Valuation ratios come from the latest snapshot.
func BuildProfile(s *models.Series, years int) Profile {
	p := Profile{}
	if s == nil {
		return p
	}
	latest := s.LatestFundamentals(years)
	if len(latest) == years && years > 0 {
		pick := map[string]func(models.FundamentalYear) float64{
			MetricRevenueGrowth: func(y models.FundamentalYear) float64 { return y.RevenueGrowth },
			MetricProfitGrowth:  func(y models.FundamentalYear) float64 { return y.ProfitGrowth },
			MetricROE:           func(y models.FundamentalYear) float64 { return y.ROE },
		}
		for metric, get := range pick {
			if v, ok := consistentMean(latest, get, func(x float64) bool { return x > 0 }); ok {
				p[metric] = v
			}
		}
		debt := func(y models.FundamentalYear) float64 { return y.DebtRatio }
		if v, ok := consistentMean(latest, debt, func(x float64) bool { return x >= 0 }); ok {
			p[MetricDebtRatio] = v
		}
	}
	if s.Valuation != nil {
		if indicators.Finite(s.Valuation.PE) {
			p[MetricPE] = s.Valuation.PE
		}
		if indicators.Finite(s.Valuation.PB) {
			p[MetricPB] = s.Valuation.PB
		}
	}
	return p
}

func consistentMean(years []models.FundamentalYear, get func(models.FundamentalYear) float64, ok func(float64) bool) (float64, bool) {
	values := make([]float64, 0, len(years))
	for _, y := range years {
		v := get(y)
		if !indicators.Finite(v) || !ok(v) {
			return 0, false
		}
		values = append(values, v)
	}
	return indicators.Mean(values), true
}

// PeerSet is an in-memory PeerUniverse grouped by industry.
type PeerSet struct {
	mu       sync.RWMutex
	years    int
	members  map[string]int
	profiles map[string][]Profile
}

// NewPeerSet builds a peer universe from fetched series using the given
// number of fiscal years for each profile.
func NewPeerSet(years int, series ...*models.Series) *PeerSet {
	ps := &PeerSet{
		years:    years,
		members:  make(map[string]int),
		profiles: make(map[string][]Profile),
	}
	for _, s := range series {
		ps.Add(s)
	}
	return ps
}

// Add registers one stock with the peer set.
func (ps *PeerSet) Add(s *models.Series) {
	if s == nil {
		return
	}
	industry := s.IndustryOrUnknown()
	profile := BuildProfile(s, ps.years)

	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.members[industry]++
	ps.profiles[industry] = append(ps.profiles[industry], profile)
}

// Years returns the number of fiscal years each profile covers.
func (ps *PeerSet) Years() int {
	return ps.years
}

func (ps *PeerSet) Size(industry string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.members[industry]
}

func (ps *PeerSet) Distribution(industry, metric string) []float64 {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	var out []float64
	for _, p := range ps.profiles[industry] {
		if v, ok := p[metric]; ok {
			out = append(out, v)
		}
	}
	return out
}

// PercentileRank returns the position of value in the sorted distribution
// divided by its length. descending ranks the largest value first. A value
// not in the distribution ranks last (1.0).
func PercentileRank(distribution []float64, value float64, descending bool) float64 {
	if len(distribution) == 0 {
		return 1
	}
	sorted := append([]float64(nil), distribution...)
	if descending {
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	} else {
		sort.Float64s(sorted)
	}
	for i, v := range sorted {
		if v == value {
			return float64(i) / float64(len(sorted))
		}
	}
	return 1
}

type metricRule struct {
	metric     string
	label      string
	descending bool
	atMost     bool // pass when percentile <= limit, otherwise when >= limit
	limit      func(cfg *config.ScanConfig) float64
}

var fundamentalRules = []metricRule{
	{MetricRevenueGrowth, "营收增长率", true, true, func(c *config.ScanConfig) float64 { return c.RevenueGrowthPercentile }},
	{MetricProfitGrowth, "净利润增长率", true, true, func(c *config.ScanConfig) float64 { return c.ProfitGrowthPercentile }},
	{MetricROE, "ROE", true, true, func(c *config.ScanConfig) float64 { return c.ROEPercentile }},
	{MetricDebtRatio, "资产负债率", false, true, func(c *config.ScanConfig) float64 { return c.LiabilityPercentile }},
	{MetricPE, "PE", false, true, func(c *config.ScanConfig) float64 { return c.PEPercentile }},
	{MetricPB, "PB", false, true, func(c *config.ScanConfig) float64 { return c.PBPercentile }},
}

// FundamentalFilter ranks a stock against its industry peers.
type FundamentalFilter struct {
	peers PeerUniverse
}

// NewFundamentalFilter creates a fundamental percentile filter. peers may be
// nil, in which case every stock is treated as the only member of its industry.
func NewFundamentalFilter(peers PeerUniverse) *FundamentalFilter {
	return &FundamentalFilter{peers: peers}
}

func (f *FundamentalFilter) Name() string  { return NameFundamental }
func (f *FundamentalFilter) Label() string { return "基本面" }

func (f *FundamentalFilter) Enabled(cfg *config.ScanConfig) bool {
	return cfg.UseFundamentalFilter
}

// Evaluate passes stocks alone in their industry. Otherwise every metric must
// have a consistent record and sit on the configured side of its percentile.
func (f *FundamentalFilter) Evaluate(w models.Window, cfg *config.ScanConfig) Result {
	industry := w.Stock.IndustryOrUnknown()
	details := map[string]any{
		"industry":      industry,
		"years_checked": cfg.FundamentalYearsToCheck,
	}

	size := 0
	if f.peers != nil {
		size = f.peers.Size(industry)
	}
	details["peer_count"] = size
	if size <= 1 {
		return passed(fmt.Sprintf("基本面: 行业(%s)内无可比公司", industry), details)
	}

	s := w.Series()
	if s == nil || (len(s.Fundamentals) == 0 && s.Valuation == nil) {
		return failed(InsufficientData+": 缺少基本面数据", details)
	}
	profile := BuildProfile(s, cfg.FundamentalYearsToCheck)

	var problems []string
	for _, rule := range fundamentalRules {
		value, ok := profile[rule.metric]
		if !ok {
			problems = append(problems, fmt.Sprintf("缺少%s数据或不连续", rule.label))
			continue
		}
		rank := PercentileRank(f.peers.Distribution(industry, rule.metric), value, rule.descending)
		limit := rule.limit(cfg)
		details[rule.metric+"_percentile"] = round4(rank)
		if rule.atMost && rank > limit || !rule.atMost && rank < limit {
			problems = append(problems, fmt.Sprintf("%s行业百分位(%.2f)不达标", rule.label, rank))
		}
	}

	if len(problems) > 0 {
		return failed(strings.Join(problems, ", "), details)
	}
	return passed(fmt.Sprintf("基本面: 行业(%s)内%d家公司中达标", industry, size), details)
}
