package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// Canonical WETH predeploy on OP-stack chains.
	DefaultWETHAddress = "0x4200000000000000000000000000000000000006"
	// Soneium mainnet.
	DefaultChainID uint64 = 1868
)

type Config struct {
	RPCURL      string
	PrivateKey  string
	FromAddress string

	ChainID       uint64
	WETHAddress   string
	WrapAmountWei *big.Int
	Rounds        int

	ReceiptTimeout time.Duration
	SettleDelay    time.Duration
	RoundDelayMin  time.Duration
	RoundDelayMax  time.Duration

	HTTPAddr         string
	KafkaBrokers     []string
	KafkaTopicPrefix string
	JournalDriver    string
	JournalDSN       string
	RedisAddr        string
	LockTTL          time.Duration
	OtelEndpoint     string

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	rpcURL, ok := source.Lookup("RPC_URL")
	if !ok || strings.TrimSpace(rpcURL) == "" {
		return Config{}, errors.New("RPC_URL is required")
	}

	privateKey, ok := source.Lookup("PRIVATE_KEY")
	if !ok || strings.TrimSpace(privateKey) == "" {
		return Config{}, errors.New("PRIVATE_KEY is required")
	}
	privateKey = strings.TrimPrefix(strings.TrimSpace(privateKey), "0x")
	if len(privateKey) != 64 || !isHex(privateKey) {
		return Config{}, errors.New("PRIVATE_KEY must be a 32-byte hex string")
	}

	fromAddress, ok := source.Lookup("FROM_ADDRESS")
	if !ok || strings.TrimSpace(fromAddress) == "" {
		return Config{}, errors.New("FROM_ADDRESS is required")
	}
	fromAddress = strings.TrimSpace(fromAddress)
	if !isAddress(fromAddress) {
		return Config{}, errors.New("FROM_ADDRESS must be a 20-byte hex address")
	}

	chainID, err := parseUintEnv(source, "CHAIN_ID", DefaultChainID)
	if err != nil {
		return Config{}, err
	}

	wethAddress := DefaultWETHAddress
	if raw, ok := source.Lookup("WETH_ADDRESS"); ok && strings.TrimSpace(raw) != "" {
		wethAddress = strings.TrimSpace(raw)
		if !isAddress(wethAddress) {
			return Config{}, errors.New("WETH_ADDRESS must be a 20-byte hex address")
		}
	}

	// 0.01 ether per round.
	wrapAmount := new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil)
	if raw, ok := source.Lookup("WRAP_AMOUNT_WEI"); ok && strings.TrimSpace(raw) != "" {
		parsed, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
		if !ok || parsed.Sign() <= 0 {
			return Config{}, errors.New("WRAP_AMOUNT_WEI must be a positive decimal integer")
		}
		wrapAmount = parsed
	}

	roundsRaw, err := parseUintEnv(source, "ROUNDS", 50)
	if err != nil {
		return Config{}, err
	}
	if roundsRaw == 0 {
		return Config{}, errors.New("ROUNDS must be positive")
	}

	receiptTimeout, err := parseDurationEnv(source, "RECEIPT_TIMEOUT", 180*time.Second)
	if err != nil {
		return Config{}, err
	}
	settleDelay, err := parseDurationEnv(source, "SETTLE_DELAY", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	roundDelayMin, err := parseDurationEnv(source, "ROUND_DELAY_MIN", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	roundDelayMax, err := parseDurationEnv(source, "ROUND_DELAY_MAX", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	if roundDelayMin < 0 || roundDelayMax < 0 {
		return Config{}, errors.New("round delays must not be negative")
	}
	if roundDelayMax < roundDelayMin {
		return Config{}, errors.New("ROUND_DELAY_MAX must not be below ROUND_DELAY_MIN")
	}

	httpAddr := ""
	if raw, ok := source.Lookup("HTTP_ADDR"); ok {
		httpAddr = strings.TrimSpace(raw)
	}

	kafkaBrokers := parseOptionalList(source, "KAFKA_BROKERS")
	kafkaTopicPrefix, ok := source.Lookup("KAFKA_TOPIC_PREFIX")
	if !ok || kafkaTopicPrefix == "" {
		kafkaTopicPrefix = "wethcycle-txs"
	}

	journalDriver, ok := source.Lookup("JOURNAL_DRIVER")
	if !ok || strings.TrimSpace(journalDriver) == "" {
		journalDriver = "sqlite"
	}
	journalDriver = strings.ToLower(strings.TrimSpace(journalDriver))
	if journalDriver != "sqlite" && journalDriver != "mysql" {
		return Config{}, fmt.Errorf("unsupported JOURNAL_DRIVER %q", journalDriver)
	}
	journalDSN, _ := source.Lookup("JOURNAL_DSN")
	journalDSN = strings.TrimSpace(journalDSN)

	redisAddr := ""
	if raw, ok := source.Lookup("REDIS_ADDR"); ok {
		redisAddr = strings.TrimSpace(raw)
	}
	lockTTL, err := parseDurationEnv(source, "LOCK_TTL", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}

	otelEndpoint, _ := source.Lookup("OTEL_EXPORTER_OTLP_ENDPOINT")
	otelEndpoint = strings.TrimSpace(otelEndpoint)

	logLevel, _ := source.Lookup("LOG_LEVEL")
	logFile, _ := source.Lookup("LOG_FILE")
	logMaxSizeMB, err := parseUintEnv(source, "LOG_MAX_SIZE_MB", 0)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseUintEnv(source, "LOG_MAX_BACKUPS", 0)
	if err != nil {
		return Config{}, err
	}

	return Config{
		RPCURL:           rpcURL,
		PrivateKey:       privateKey,
		FromAddress:      fromAddress,
		ChainID:          chainID,
		WETHAddress:      wethAddress,
		WrapAmountWei:    wrapAmount,
		Rounds:           int(roundsRaw),
		ReceiptTimeout:   receiptTimeout,
		SettleDelay:      settleDelay,
		RoundDelayMin:    roundDelayMin,
		RoundDelayMax:    roundDelayMax,
		HTTPAddr:         httpAddr,
		KafkaBrokers:     kafkaBrokers,
		KafkaTopicPrefix: kafkaTopicPrefix,
		JournalDriver:    journalDriver,
		JournalDSN:       journalDSN,
		RedisAddr:        redisAddr,
		LockTTL:          lockTTL,
		OtelEndpoint:     otelEndpoint,
		LogLevel:         logLevel,
		LogFile:          logFile,
		LogMaxSizeMB:     int(logMaxSizeMB),
		LogMaxBackups:    int(logMaxBackups),
	}, nil
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}

func parseOptionalList(source EnvSource, key string) []string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	var values []string
	for _, item := range items {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	return values
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return len(s) > 0
}

func isAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return false
	}
	return len(s) == 42 && isHex(s[2:])
}
