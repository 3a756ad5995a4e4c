package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/jrsteele09/taxappeal-client/credentials"
	"github.com/jrsteele09/taxappeal-client/credentials/filestore"
	"github.com/jrsteele09/taxappeal-client/credentials/redisstore"
	"github.com/jrsteele09/taxappeal-client/internal/config"
	"github.com/jrsteele09/taxappeal-client/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetLogLevel(), c.GetEnv())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	a, err := newApp(c, store, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	return a.execute(ctx, args)
}

// openStore builds the credential store selected by CREDENTIAL_STORE.
func openStore(ctx context.Context, c config.StoreConfig) (credentials.Store, func(), error) {
	switch c.GetCredentialStore() {
	case config.MemoryStore:
		return credentials.NewMemoryStore(), func() {}, nil
	case config.RedisStore:
		rdb := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", c.GetRedisAddr(), err)
		}
		return redisstore.New(rdb, c.GetRedisNamespace()), func() { _ = rdb.Close() }, nil
	default:
		store, err := filestore.New(c.GetCredentialFile(), c.GetCredentialPassphrase())
		if err != nil {
			return nil, nil, fmt.Errorf("opening credential file: %w", err)
		}
		return store, func() {}, nil
	}
}
