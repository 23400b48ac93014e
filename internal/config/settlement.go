package config

import (
	"time"

	"github.com/spf13/viper"
)

// MissingFXRatePolicy decides what happens when a line's currency has no rate.
type MissingFXRatePolicy string

const (
	// FXPassthrough treats the missing rate as 1.
	FXPassthrough MissingFXRatePolicy = "passthrough"
	// FXStrict rejects the distribution request.
	FXStrict MissingFXRatePolicy = "strict"
)

type SettlementConfig struct {
	LockTimeout          time.Duration
	ReferenceCurrency    string
	MissingFXRatePolicy  MissingFXRatePolicy
	FXCacheTTL           time.Duration
	DistributionGuardTTL time.Duration
	ReceiptDir           string
	MaxReceiptBytes      int64
	CompanyName          string
	CompanyBIC           string
}

func LoadSettlementConfig() *SettlementConfig {
	viper.SetDefault("settlement.lock_timeout", 5*time.Second)
	viper.SetDefault("settlement.reference_currency", "USD")
	viper.SetDefault("settlement.missing_fx_rate_policy", string(FXPassthrough))
	viper.SetDefault("settlement.fx_cache_ttl", 10*time.Minute)
	viper.SetDefault("settlement.distribution_guard_ttl", 2*time.Minute)
	viper.SetDefault("settlement.receipt_dir", "./data/receipts")
	viper.SetDefault("settlement.max_receipt_bytes", 10<<20)
	viper.SetDefault("settlement.company_name", "ProcurePay Buyer")
	viper.SetDefault("settlement.company_bic", "PROCUSXX")

	policy := MissingFXRatePolicy(viper.GetString("settlement.missing_fx_rate_policy"))
	if policy != FXStrict {
		policy = FXPassthrough
	}

	return &SettlementConfig{
		LockTimeout:          viper.GetDuration("settlement.lock_timeout"),
		ReferenceCurrency:    viper.GetString("settlement.reference_currency"),
		MissingFXRatePolicy:  policy,
		FXCacheTTL:           viper.GetDuration("settlement.fx_cache_ttl"),
		DistributionGuardTTL: viper.GetDuration("settlement.distribution_guard_ttl"),
		ReceiptDir:           viper.GetString("settlement.receipt_dir"),
		MaxReceiptBytes:      viper.GetInt64("settlement.max_receipt_bytes"),
		CompanyName:          viper.GetString("settlement.company_name"),
		CompanyBIC:           viper.GetString("settlement.company_bic"),
	}
}

type NotificationConfig struct {
	QueueURL       string
	AWSRegion      string
	AWSAccessKey   string
	AWSSecret      string
	RecipientGroup string
	Timeout        time.Duration

	BreakerMaxRequests         uint32
	BreakerInterval            time.Duration
	BreakerTimeout             time.Duration
	BreakerConsecutiveFailures uint32
}

func LoadNotificationConfig() *NotificationConfig {
	viper.SetDefault("notification.aws_region", "us-east-1")
	viper.SetDefault("notification.recipient_group", "order-payments")
	viper.SetDefault("notification.timeout", 10*time.Second)
	viper.SetDefault("notification.breaker.max_requests", 1)
	viper.SetDefault("notification.breaker.interval", time.Minute)
	viper.SetDefault("notification.breaker.timeout", 30*time.Second)
	viper.SetDefault("notification.breaker.consecutive_failures", 5)

	return &NotificationConfig{
		QueueURL:                   viper.GetString("notification.queue_url"),
		AWSRegion:                  viper.GetString("notification.aws_region"),
		AWSAccessKey:               viper.GetString("notification.aws_access_key"),
		AWSSecret:                  viper.GetString("notification.aws_secret"),
		RecipientGroup:             viper.GetString("notification.recipient_group"),
		Timeout:                    viper.GetDuration("notification.timeout"),
		BreakerMaxRequests:         viper.GetUint32("notification.breaker.max_requests"),
		BreakerInterval:            viper.GetDuration("notification.breaker.interval"),
		BreakerTimeout:             viper.GetDuration("notification.breaker.timeout"),
		BreakerConsecutiveFailures: viper.GetUint32("notification.breaker.consecutive_failures"),
	}
}

type LoggerConfig struct {
	Environment string
	Level       string
}

func LoadLoggerConfig() *LoggerConfig {
	viper.SetDefault("log.environment", "production")

	return &LoggerConfig{
		Environment: viper.GetString("log.environment"),
		Level:       viper.GetString("log.level"),
	}
}
