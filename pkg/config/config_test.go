package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.Equal(t, EnvDevelopment, cfg.Env)
	require.Equal(t, "/api/v1", cfg.APIPrefix)
	require.Equal(t, 7, cfg.Compliance.AlertLookaheadDays)
	require.Equal(t, 2*time.Minute, cfg.Compliance.CacheTTL)
	require.Equal(t, []string{"application/pdf", "image/jpeg", "image/png"}, cfg.Documents.AllowedMIMEs)
	require.Equal(t, int64(10*1024*1024), cfg.Documents.MaxFileSizeBytes)
	require.Equal(t, 20*time.Second, cfg.Advisor.Timeout)
	require.Equal(t, "document-events", cfg.Events.KafkaTopic)
	require.Nil(t, cfg.Events.KafkaBrokers)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("COMPLIANCE_ALERT_LOOKAHEAD_DAYS", 0)
	v.Set("ADVISOR_TIMEOUT", "not-a-duration")
	v.Set("EVENTS_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092 ,")

	cfg := fromViper(v)
	require.Equal(t, 7, cfg.Compliance.AlertLookaheadDays)
	require.Equal(t, 20*time.Second, cfg.Advisor.Timeout)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.KafkaBrokers)
}
