package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategories(t *testing.T) {
	got := ParseCategories("Кровати|beds|/furniture/all/krovati/; broken ;Столы|tables|/furniture/all/stoly/;||")

	require.Len(t, got, 2)
	assert.Equal(t, CategorySource{Name: "Кровати", Slug: "beds", Path: "/furniture/all/krovati/"}, got[0])
	assert.Equal(t, "tables", got[1].Slug)
}

func TestLoadParserDefaults(t *testing.T) {
	t.Setenv("PARSER_DELAY", "250")
	t.Setenv("PARSER_TIMEOUT", "45s")
	t.Setenv("PARSER_BASE_URL", "https://example.test/")
	t.Setenv("PARSER_CATEGORIES", "")
	t.Setenv("REDIS_ADDR", "")

	cfg := Load()

	assert.Equal(t, 250*time.Millisecond, cfg.Parser.ProductDelay)
	assert.Equal(t, 45*time.Second, cfg.Parser.Timeout)
	assert.Equal(t, "https://example.test", cfg.Parser.BaseURL)
	assert.Equal(t, 5, cfg.Parser.MaxImages)
	assert.Equal(t, DefaultCategories(), cfg.Parser.Categories)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadLeavesRedisAndKafkaOffWhenUnset(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")
	os.Unsetenv("REDIS_ADDR")
	os.Unsetenv("KAFKA_BROKERS")

	cfg := Load()

	assert.False(t, cfg.Redis.Enabled)
	assert.Empty(t, cfg.Redis.Addr)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadEnablesKafkaFromBrokerList(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg := Load()

	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}
