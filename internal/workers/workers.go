package workers

import (
	"time"

	"github.com/rs/zerolog/log"

	"hookbin/internal/engine/hooks"
	"hookbin/internal/platform/config"
)

// PurgeExpiredWebhooks deletes webhooks captured before the retention window.
// Their forwards go with them through the foreign-key cascade.
func PurgeExpiredWebhooks(webhooks *hooks.WebhookRepository, cfg config.RetentionConfig) error {
	cutoff := time.Now().Add(-cfg.MaxAge).Unix()

	affected, err := webhooks.PurgeOlderThan(cutoff)
	if err != nil {
		return err
	}

	if affected > 0 {
		log.Info().Int64("purged", affected).Int64("cutoff", cutoff).Msg("retention purge")
	}
	return nil
}
