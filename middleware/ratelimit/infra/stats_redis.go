package infra

import (
	"context"
	"strings"
	"time"

	"ratelimit-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava contadores de decisões em hashes do Redis.
//
// Só estatística: o estado de contagem do limiter continua em memória.
//
// Layout (prefix padrão "ratelimit:stats"):
//
//	<prefix>:total                 admitted / rejected (não expira)
//	<prefix>:minute:200601021504   admitted / rejected (ttl)
//	<prefix>:route                 "<METHOD>:admitted" / ":rejected" (não expira)
//	<prefix>:route:200601021504    "<METHOD> <path>:admitted" / ":rejected" (ttl)
//	<prefix>:key:<key>             admitted / rejected (ttl, opcional)
type RedisStatsStore struct {
	rdb redis.Cmdable

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// hashIncr é um HINCRBY planejado para um evento.
type hashIncr struct {
	key    string
	field  string
	expire bool
}

func outcomeField(o domain.Outcome) string {
	if o == domain.Reject {
		return "rejected"
	}
	return "admitted"
}

// plan monta os incrementos de um evento sem tocar no Redis.
func (s *RedisStatsStore) plan(ev domain.StatsEvent) []hashIncr {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := outcomeField(ev.Outcome)

	out := []hashIncr{{key: s.prefix + ":total", field: field}}

	if s.bucket == "minute" {
		out = append(out, hashIncr{
			key:    s.prefix + ":minute:" + at.UTC().Format("200601021504"),
			field:  field,
			expire: true,
		})
	}

	if ev.Method != "" {
		method := methodLabel(ev.Method)
		out = append(out, hashIncr{key: s.prefix + ":route", field: method + ":" + field})
		// path vem do cliente: só entra no bucket por minuto, que expira.
		if path := strings.TrimSpace(ev.Path); path != "" && s.bucket == "minute" {
			out = append(out, hashIncr{
				key:    s.prefix + ":route:" + at.UTC().Format("200601021504"),
				field:  method + " " + path + ":" + field,
				expire: true,
			})
		}
	}

	if s.trackKeys {
		if k := strings.TrimSpace(string(ev.Key)); k != "" {
			out = append(out, hashIncr{key: s.prefix + ":key:" + k, field: field, expire: true})
		}
	}
	return out
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	incrs := s.plan(ev)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, in := range incrs {
			pipe.HIncrBy(ctx, in.key, in.field, 1)
			if in.expire && s.ttl > 0 {
				pipe.Expire(ctx, in.key, s.ttl)
			}
		}
		return nil
	})
	return err
}
