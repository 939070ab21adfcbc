package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func sampleNotification() Notification {
	return Notification{
		Bucket:       time.Date(2025, 6, 2, 5, 30, 0, 0, time.UTC),
		Field:        "usd_inr",
		Label:        "USD/INR",
		Unit:         "INR",
		Previous:     decimal.RequireFromString("86.50"),
		Current:      decimal.RequireFromString("87.60"),
		ChangePct:    decimal.RequireFromString("1.2716"),
		ThresholdPct: decimal.NewFromInt(1),
		Direction:    "up",
		DataSource:   "alphavantage",
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "bottoken/sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if !strings.Contains(received["text"], "USD/INR") {
		t.Fatalf("text 应包含字段名: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	err := notifier.Notify(context.Background(), sampleNotification())
	if err == nil {
		t.Fatal("ok=false 应报错")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("错误应包含描述: %v", err)
	}
}

func TestTelegramNotifierHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNotification()); err == nil {
		t.Fatal("非 2xx 应报错")
	}
}

func TestRenderMessage(t *testing.T) {
	text := RenderMessage(sampleNotification())
	for _, want := range []string{"USD/INR", "86.5000 INR", "87.6000 INR", "1.272%", "threshold 1.000%", "Direction: up", "Source: alphavantage"} {
		if !strings.Contains(text, want) {
			t.Fatalf("消息缺少 %q:\n%s", want, text)
		}
	}
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Notify(context.Context, Notification) error {
	f.calls++
	return errors.New("down")
}

func TestMultiDeliversToAllChannels(t *testing.T) {
	first := &failingNotifier{}
	second := &failingNotifier{}
	multi := Multi{first, NewLogNotifier(testLogger()), second}

	err := multi.Notify(context.Background(), sampleNotification())
	if err == nil {
		t.Fatal("应返回汇总错误")
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("所有通道都应被调用: %d %d", first.calls, second.calls)
	}
	if err := (Multi{NewLogNotifier(testLogger())}).Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("日志通道不应失败: %v", err)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
