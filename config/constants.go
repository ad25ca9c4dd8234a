package config

import "time"

// HTTP Constants
const (
	// DefaultRequestTimeout bounds every outbound HTTP call
	DefaultRequestTimeout = 30 * time.Second

	// DefaultRetryAttempts is the fixed retry budget per HTTP call
	DefaultRetryAttempts = 3

	// DefaultRetryDelay is the fixed pause between attempts
	DefaultRetryDelay = 2 * time.Second

	// DefaultRequestsPerSecond spaces requests to the same portal
	DefaultRequestsPerSecond = 1.0

	// DefaultUserAgent is sent with every source request
	DefaultUserAgent = "Mozilla/5.0 (compatible; listingwatch/1.0)"

	// DefaultPageSize caps the candidates taken from one source per run
	DefaultPageSize = 50
)

// Source Constants
const (
	// HKEXBaseURL is the HKEXnews portal root; relative links resolve against it
	HKEXBaseURL = "https://www.hkexnews.hk"

	// DefaultHKEXCompanyName is the issuer name used in HKEX queries
	DefaultHKEXCompanyName = "Yonyou"

	// DefaultStockCode is the A-share code of the target issuer
	DefaultStockCode = "600588"

	// DefaultEastmoneyAPIURL serves the A-share announcement list as JSON
	DefaultEastmoneyAPIURL = "https://np-anotice-stock.eastmoney.com/api/security/ann"

	// DefaultEastmoneyDaysBack is the look-back window for Eastmoney announcements
	DefaultEastmoneyDaysBack = 30
)

// Ledger Constants
const (
	// DefaultDataDir holds the ledger file when the file backend is used
	DefaultDataDir = "./data"

	// LedgerFileName is the ledger file name inside the data directory
	LedgerFileName = "seen_hashes.json"

	// DefaultLedgerRedisKey is the key holding the ledger document in Redis
	DefaultLedgerRedisKey = "listingwatch:ledger"

	// DefaultLedgerS3Key is the object key holding the ledger document in S3
	DefaultLedgerS3Key = "listingwatch/seen_hashes.json"
)

// Ledger backends
const (
	LedgerBackendFile  = "file"
	LedgerBackendS3    = "s3"
	LedgerBackendRedis = "redis"
)

// Notification Constants
const (
	// DefaultTelegramAPIURL is the Telegram Bot API root
	DefaultTelegramAPIURL = "https://api.telegram.org"

	// DefaultKafkaTopic receives one message per confirmed event
	DefaultKafkaTopic = "listing-events"
)

// Server Constants
const (
	// DefaultPort is the HTTP API port in serve mode
	DefaultPort = "8080"

	// DefaultCronSchedule runs the monitor every 30 minutes in serve mode
	DefaultCronSchedule = "*/30 * * * *"
)
