package monitoring

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertLevel 告警级别
type AlertLevel string

const (
	Info     AlertLevel = "info"
	Warning  AlertLevel = "warning"
	Error    AlertLevel = "error"
	Critical AlertLevel = "critical"
)

// 告警来源
const (
	SourcePredictor   = "predictor"
	SourceModelReload = "model_reload"
)

// 保留的最大告警数
const maxAlerts = 500

// Alert 告警结构
type Alert struct {
	ID         string                 `json:"id"`
	Level      AlertLevel             `json:"level"`
	Title      string                 `json:"title"`
	Message    string                 `json:"message"`
	Source     string                 `json:"source"`
	Timestamp  time.Time              `json:"timestamp"`
	Resolved   bool                   `json:"resolved"`
	ResolvedAt *time.Time             `json:"resolved_at,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// AlertConfig 告警配置；WebhookURL 为空时只写日志
type AlertConfig struct {
	WebhookURL string
	Cooldown   time.Duration
	MaxPerHour int
	Timeout    time.Duration
}

// AlertStats 告警统计
type AlertStats struct {
	TotalAlerts    int64                `json:"total_alerts"`
	ActiveAlerts   int64                `json:"active_alerts"`
	ResolvedAlerts int64                `json:"resolved_alerts"`
	Delivered      int64                `json:"delivered"`
	Failed         int64                `json:"failed"`
	Suppressed     int64                `json:"suppressed"`
	ByLevel        map[AlertLevel]int64 `json:"by_level"`
	LastAlert      time.Time            `json:"last_alert"`
}

// rateTracker 按来源限流
type rateTracker struct {
	hourCount int
	hourReset time.Time
	lastSent  time.Time
}

// AlertSystem 告警系统
type AlertSystem struct {
	mu      sync.RWMutex
	alerts  map[string]*Alert
	order   []string
	limits  map[string]*rateTracker
	stats   AlertStats
	config  AlertConfig
	webhook *resty.Client
	pending sync.WaitGroup
	logger  *zap.Logger
}

// NewAlertSystem 创建告警系统
func NewAlertSystem(config AlertConfig, logger *zap.Logger) *AlertSystem {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	system := &AlertSystem{
		alerts: make(map[string]*Alert),
		limits: make(map[string]*rateTracker),
		stats:  AlertStats{ByLevel: make(map[AlertLevel]int64)},
		config: config,
		logger: logger,
	}
	if config.WebhookURL != "" {
		system.webhook = resty.New().
			SetTimeout(config.Timeout).
			SetHeader("Content-Type", "application/json")
	}
	return system
}

// SendAlert 记录告警；限流允许时在后台推送到 webhook，不阻塞调用方
func (a *AlertSystem) SendAlert(alert *Alert) error {
	if alert == nil {
		return fmt.Errorf("alert is nil")
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	a.mu.Lock()
	a.store(alert)
	a.stats.TotalAlerts++
	a.stats.ByLevel[alert.Level]++
	a.stats.LastAlert = alert.Timestamp
	allowed := a.checkRateLimit(alert.Source, alert.Timestamp)
	if !allowed {
		a.stats.Suppressed++
	}
	a.mu.Unlock()

	a.logger.Warn("alert raised",
		zap.String("id", alert.ID),
		zap.String("level", string(alert.Level)),
		zap.String("source", alert.Source),
		zap.String("title", alert.Title),
		zap.String("message", alert.Message),
	)

	if a.webhook == nil || !allowed {
		return nil
	}
	delivery := *alert
	a.pending.Add(1)
	go a.deliver(&delivery)
	return nil
}

func (a *AlertSystem) deliver(alert *Alert) {
	defer a.pending.Done()
	err := a.sendWebhook(alert)

	a.mu.Lock()
	if err != nil {
		a.stats.Failed++
	} else {
		a.stats.Delivered++
	}
	a.mu.Unlock()

	if err != nil {
		a.logger.Error("alert delivery failed", zap.String("id", alert.ID), zap.Error(err))
	}
}

// Wait 等待后台推送完成
func (a *AlertSystem) Wait() {
	a.pending.Wait()
}

// store 保存告警，超出上限时丢弃最旧的
func (a *AlertSystem) store(alert *Alert) {
	a.alerts[alert.ID] = alert
	a.order = append(a.order, alert.ID)
	if len(a.order) > maxAlerts {
		delete(a.alerts, a.order[0])
		a.order = a.order[1:]
	}
}

func (a *AlertSystem) checkRateLimit(source string, now time.Time) bool {
	tracker, ok := a.limits[source]
	if !ok {
		tracker = &rateTracker{hourReset: now.Truncate(time.Hour)}
		a.limits[source] = tracker
	}

	// 重置计数器
	if now.Sub(tracker.hourReset) >= time.Hour {
		tracker.hourCount = 0
		tracker.hourReset = now.Truncate(time.Hour)
	}

	if a.config.MaxPerHour > 0 && tracker.hourCount >= a.config.MaxPerHour {
		return false
	}
	// 检查冷却时间
	if a.config.Cooldown > 0 && !tracker.lastSent.IsZero() && now.Sub(tracker.lastSent) < a.config.Cooldown {
		return false
	}

	tracker.hourCount++
	tracker.lastSent = now
	return true
}

func (a *AlertSystem) sendWebhook(alert *Alert) error {
	resp, err := a.webhook.R().SetBody(alert).Post(a.config.WebhookURL)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}
	return nil
}

// ResolveSource 解决某一来源的全部活跃告警，返回解决的数量
func (a *AlertSystem) ResolveSource(source string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	resolved := 0
	for _, alert := range a.alerts {
		if alert.Source == source && !alert.Resolved {
			alert.Resolved = true
			alert.ResolvedAt = &now
			resolved++
		}
	}
	a.stats.ResolvedAlerts += int64(resolved)
	return resolved
}

// GetActiveAlerts 获取活跃告警，按时间排序
func (a *AlertSystem) GetActiveAlerts() []Alert {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.activeLocked()
}

func (a *AlertSystem) activeLocked() []Alert {
	active := make([]Alert, 0)
	for _, alert := range a.alerts {
		if !alert.Resolved {
			active = append(active, *alert)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].Timestamp.Before(active[j].Timestamp)
	})
	return active
}

// GetStats 获取统计信息
func (a *AlertSystem) GetStats() AlertStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := a.stats
	stats.ByLevel = make(map[AlertLevel]int64, len(a.stats.ByLevel))
	for level, count := range a.stats.ByLevel {
		stats.ByLevel[level] = count
	}
	stats.ActiveAlerts = int64(len(a.activeLocked()))
	return stats
}
