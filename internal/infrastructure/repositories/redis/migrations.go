package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"camrelay/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const currentSchemaVersion = 2

// Migration represents a keyspace migration
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client, keys keyspace) error
}

func schemaVersionKey(keys keyspace) string {
	return keys.prefix + "schema:version"
}

// Migrate runs all pending migrations
func Migrate(ctx context.Context, client *redis.Client, prefix string, logger *zap.SugaredLogger) error {
	keys := newKeyspace(prefix)

	currentVersion, err := getSchemaVersion(ctx, client, keys)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Infow("schema is up to date",
				"current_version", currentVersion,
				"target_version", currentSchemaVersion,
			)
		}
		return nil
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}

		if err := migration.Up(ctx, client, keys); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if err := client.Set(ctx, schemaVersionKey(keys), migration.Version, 0).Err(); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}

		if logger != nil {
			logger.Infow("migration completed", "version", migration.Version)
		}
	}

	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client, keys keyspace) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey(keys)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func getMigrations() []Migration {
	return []Migration{
		{
			// Session documents written before the status and per-camera
			// indexes existed are invisible to sweeps and feeds; backfill them.
			Version: 1,
			Up:      backfillSessionIndexes,
		},
		{
			Version: 2,
			Up:      backfillCameraIndex,
		},
	}
}

func backfillSessionIndexes(ctx context.Context, client *redis.Client, keys keyspace) error {
	cameraPrefix := keys.prefix + "camera:"
	iter := client.Scan(ctx, 0, cameraPrefix+"*:session:*", 500).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, ":candidates") {
			continue
		}
		cameraID, sessionID, ok := strings.Cut(strings.TrimPrefix(key, cameraPrefix), ":session:")
		if !ok || strings.Contains(sessionID, ":") {
			continue
		}

		vals, err := client.HMGet(ctx, key, fieldStatus, fieldCreatedAt).Result()
		if err != nil {
			return err
		}
		status, _ := vals[0].(string)
		createdAt, _ := vals[1].(string)
		st, err := domain.ParseSessionStatus(status)
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(createdAt, 64)
		if err != nil {
			continue
		}

		ref := domain.SessionRef{CameraID: domain.CameraID(cameraID), SessionID: domain.SessionID(sessionID)}
		_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(ctx, keys.cameraSessions(ref.CameraID), redis.Z{Score: score, Member: sessionID})
			pipe.ZAdd(ctx, keys.statusSessions(st), redis.Z{Score: score, Member: refMember(ref)})
			return nil
		})
		if err != nil {
			return err
		}
	}
	return iter.Err()
}

// backfillCameraIndex adds cameras created before the global camera set
// existed. Only plain camera documents match: child keys carry a second ':'.
func backfillCameraIndex(ctx context.Context, client *redis.Client, keys keyspace) error {
	cameraPrefix := keys.prefix + "camera:"
	iter := client.Scan(ctx, 0, cameraPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), cameraPrefix)
		if id == "" || strings.Contains(id, ":") {
			continue
		}
		if err := client.SAdd(ctx, keys.allCameras(), id).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
