package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bridgewatch/internal/domain"
)

// Notification 封装告警上下文。
type Notification struct {
	AlertID             string
	Pair                domain.Pair
	ThresholdType       ThresholdType
	ReferenceType       ReferenceType
	ThresholdValue      decimal.Decimal
	CurrentRate         decimal.Decimal
	ReferenceValue      decimal.NullDecimal
	CalculatedThreshold decimal.Decimal
	TriggeredAt         time.Time
	AdditionalMsg       string
}

// NewNotification builds the outbound message for a firing evaluation.
func NewNotification(res EvaluationResult) Notification {
	return Notification{
		AlertID:             res.Alert.ID.String(),
		Pair:                res.Alert.Pair,
		ThresholdType:       res.Alert.ThresholdType,
		ReferenceType:       res.Alert.ReferenceType,
		ThresholdValue:      res.Alert.ThresholdValue,
		CurrentRate:         res.CurrentRate,
		ReferenceValue:      res.ReferenceValue,
		CalculatedThreshold: res.CalculatedThreshold,
		TriggeredAt:         res.EvaluatedAt,
	}
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered alert text.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("alert_id", note.AlertID).
		Str("pair", note.Pair.String()).
		Str("rate", note.CurrentRate.String()).
		Msg("alert delivered (telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[%s/%s Rate Alert]\n", note.Pair.Source(), note.Pair.Target()))
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", note.TriggeredAt.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Rate: %s\n", note.CurrentRate.StringFixed(4)))
	builder.WriteString(fmt.Sprintf("Threshold: %s\n", note.CalculatedThreshold.StringFixed(4)))
	if note.ThresholdType == ThresholdRelative {
		builder.WriteString(fmt.Sprintf("Rule: +%s%% over %s", note.ThresholdValue.String(), note.ReferenceType))
		if note.ReferenceValue.Valid {
			builder.WriteString(fmt.Sprintf(" (%s)", note.ReferenceValue.Decimal.StringFixed(4)))
		}
		builder.WriteString("\n")
	}
	builder.WriteString(fmt.Sprintf("Alert: %s\n", note.AlertID))
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)

// LogNotifier writes alerts to the application log. It stands in when no
// delivery channel is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier builds a log-only notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the rendered alert.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Warn().Str("alert_id", note.AlertID).
		Str("pair", note.Pair.String()).
		Str("rate", note.CurrentRate.String()).
		Str("threshold", note.CalculatedThreshold.String()).
		Msg(renderMessage(note))
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
