package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/citybot/core/logger"
)

const telegramAPI = "https://api.telegram.org"

// cleanupWebhook drops a webhook left by a previous webhook-mode run; Telegram
// refuses getUpdates while one is set. Failures are logged, not returned.
func cleanupWebhook(ctx context.Context, token string, longPollSeconds int) {
	client := BuildHTTPClient(HTTPClientOptions{LongPollTimeout: time.Duration(longPollSeconds) * time.Second})
	status := "ok"
	level := slog.LevelInfo
	var attrs []slog.Attr
	if err := deleteWebhook(ctx, client, token, false); err != nil {
		status, level = "fail", slog.LevelWarn
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
	}
	logger.LogEvent(ctx, logger.TG, level, "delete_webhook", append(attrs, slog.String("status", status))...)
}

func deleteWebhook(ctx context.Context, client *http.Client, token string, dropPending bool) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("empty token")
	}
	form := url.Values{"drop_pending_updates": {strconv.FormatBool(dropPending)}}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		telegramAPI+"/bot"+token+"/deleteWebhook", strings.NewReader(form.Encode()))
	if err != nil {
		return errors.New("build deleteWebhook request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		// url.Error carries the request URL, which includes the token.
		if uerr := (*url.Error)(nil); errors.As(err, &uerr) {
			return uerr.Err
		}
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deleteWebhook status: %s", resp.Status)
	}
	return nil
}
