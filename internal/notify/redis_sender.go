package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fahdi/pakpropertyapp-sub001/internal/config"
)

// RedisSender stores notifications in Redis instead of sending them.
// Enabled by MOCK_SERVICES=true so end-to-end tests can assert on what
// would have been delivered.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{client: client, cfg: cfg}
}

// Send stores a JSON representation of the notification under
// mocknotify:<recipient>:<event>. The event label is parsed back out of
// the subject line, which always carries it in brackets.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	event := "unknown"
	if start := strings.Index(subject, "["); start >= 0 {
		if end := strings.Index(subject[start:], "]"); end > 1 {
			event = subject[start+1 : start+end]
		}
	}

	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	data := map[string]interface{}{
		"to":      strings.Join(to, ", "),
		"from":    s.cfg.SmtpFromAddress,
		"subject": subject,
		"body":    string(rawMessage),
		"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
		"event":   event,
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}

	key := fmt.Sprintf("mocknotify:%s:%s", primaryTo, event)
	ttl := 5 * time.Minute
	if err := s.client.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store notification in Redis key '%s': %w", key, err)
	}

	log.Printf("Mock notification stored in Redis key '%s' (To: %s, Subject: %s)", key, primaryTo, subject)
	return nil
}
