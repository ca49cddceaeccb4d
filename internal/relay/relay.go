// Package relay はジョブイベントをNATSへ中継する。
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/hitoshi/truthlens/internal/model"
)

// Publisher はNATSメッセージ送信のインターフェース。*nats.Conn が実装する。
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// headerCarrier はnats.MsgのヘッダをOTelのTextMapCarrierに適合させる。
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// NATSRelay はジョブイベントを "<prefix>.<state>" のサブジェクトへJSONで送信する。
type NATSRelay struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
}

// NewNATSRelay はNATSRelayの新しいインスタンスを生成する。
func NewNATSRelay(pub Publisher, prefix string, logger *slog.Logger) *NATSRelay {
	return &NATSRelay{
		pub:    pub,
		prefix: prefix,
		logger: logger,
	}
}

// Subject はイベントの送信先サブジェクトを返す。
func (r *NATSRelay) Subject(ev model.JobEvent) string {
	return fmt.Sprintf("%s.%s", r.prefix, ev.State)
}

// Publish は1件のイベントを送信する。ctxのトレースコンテキストはヘッダに注入される。
func (r *NATSRelay) Publish(ctx context.Context, ev model.JobEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗しました: %w", err)
	}
	msg := &nats.Msg{
		Subject: r.Subject(ev),
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	if err := r.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("イベントの送信に失敗しました: %w", err)
	}
	return nil
}

// Run はイベントチャネルが閉じられるかctxがキャンセルされるまで中継を続ける。
// 送信失敗はログに記録して次のイベントへ進む。
func (r *NATSRelay) Run(ctx context.Context, events <-chan model.JobEvent) {
	r.logger.Info("NATSへのイベント中継を開始します", slog.String("subject_prefix", r.prefix))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("NATSへのイベント中継を停止しました")
			return
		case ev, ok := <-events:
			if !ok {
				r.logger.Info("イベントチャネルが閉じられたため中継を終了します")
				return
			}
			if err := r.Publish(ctx, ev); err != nil {
				r.logger.Warn("ジョブイベントの中継に失敗しました",
					slog.String("item_id", ev.ItemID),
					slog.String("state", string(ev.State)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
