// Command keygen mints license keys directly against the entitlement store,
// for operators working outside the admin dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/netrixlabs/keygate/internal/keys"
)

func main() {
	var (
		redisAddr = flag.String("redis", envOr("REDIS_ADDR", "localhost:6379"), "redis address")
		quantity  = flag.Int("n", 1, "number of keys to generate")
		days      = flag.Int("days", 0, "grant duration: days component")
		hours     = flag.Int("hours", 1, "grant duration: hours component")
		minutes   = flag.Int("minutes", 0, "grant duration: minutes component")
	)
	flag.Parse()

	durationMs := int64(*days)*24*3_600_000 + int64(*hours)*3_600_000 + int64(*minutes)*60_000
	if durationMs <= 0 {
		log.Fatal("duration must be positive (use -days/-hours/-minutes)")
	}

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr, Password: os.Getenv("REDIS_PASSWORD")})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	registry := keys.NewRegistry(rdb)
	generated, err := registry.Generate(ctx, *quantity, durationMs)
	if err != nil {
		log.Fatalf("generate failed: %v", err)
	}

	for _, k := range generated {
		fmt.Println(k)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
