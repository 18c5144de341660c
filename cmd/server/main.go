package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/paydesk/ledgerxgo"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"
	"gopkg.in/yaml.v3"

	"github.com/rs/zerolog"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	var cfg ledgerxgo.Config
	cfp := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()
	cfgfl, err := os.Open(*cfp)
	if err != nil {
		logger.Fatal().Err(err).Msg("error opening config file")
	}
	if err = yaml.NewDecoder(cfgfl).Decode(&cfg); err != nil {
		logger.Fatal().Err(err).Msg("error decoding config file")
	}
	cfgfl.Close()

	pgendpt, err := ledgerxgo.NewPostgresEndpoint(cfg.Database.ConnectionString, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting database")
	}
	defer pgendpt.Close()

	var pub ledgerxgo.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kpub := ledgerxgo.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kpub.Close()
		pub = kpub
	}

	svc := ledgerxgo.NewService(pgendpt, pub, &logger)
	if cfg.Ledger.SeedBalance != "" {
		seed, err := decimal.NewFromString(cfg.Ledger.SeedBalance)
		if err != nil {
			logger.Fatal().Err(err).Msg("error parsing seed balance")
		}
		svc.SetSeedBalance(seed)
	}

	transfers := cfg.Limits.Transfer
	if transfers <= 0 {
		transfers = 64
	}
	reads := cfg.Limits.Reads
	if reads <= 0 {
		reads = 256
	}
	limits := &ledgerxgo.ServiceLimits{
		AuthenticateOrCreate: semaphore.NewWeighted(reads),
		Transfer:             semaphore.NewWeighted(transfers),
		Account:              semaphore.NewWeighted(reads),
		Ledger:               semaphore.NewWeighted(reads),
		UpdateCredential:     semaphore.NewWeighted(reads),
		Statement:            semaphore.NewWeighted(reads),
	}
	brkrs := &ledgerxgo.ServiceBreaker{
		AuthenticateOrCreate: gobreaker.NewTwoStepCircuitBreaker[*ledgerxgo.Account](gobreaker.Settings{Name: "authenticate"}),
		Transfer:             gobreaker.NewTwoStepCircuitBreaker[*decimal.Decimal](gobreaker.Settings{Name: "transfer"}),
		Account:              gobreaker.NewTwoStepCircuitBreaker[*ledgerxgo.Account](gobreaker.Settings{Name: "account"}),
		Ledger:               gobreaker.NewTwoStepCircuitBreaker[[]ledgerxgo.LedgerEntry](gobreaker.Settings{Name: "ledger"}),
		UpdateCredential:     gobreaker.NewTwoStepCircuitBreaker[interface{}](gobreaker.Settings{Name: "update_credential"}),
		Statement:            gobreaker.NewTwoStepCircuitBreaker[interface{}](gobreaker.Settings{Name: "statement"}),
	}

	var wrapped ledgerxgo.Service = svc
	for _, mw := range []ledgerxgo.Middleware{
		ledgerxgo.NewCircuitBreakMiddleware(brkrs),
		ledgerxgo.NewLimitMiddleware(limits),
		ledgerxgo.NewValidationMiddleware(),
	} {
		wrapped = mw(wrapped)
	}

	hndlr := ledgerxgo.NewHTTPHandler(wrapped, &logger)

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":3000"
	}
	logger.Info().Str("addr", addr).Msg("listening")
	if err := http.ListenAndServe(addr, hndlr); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
