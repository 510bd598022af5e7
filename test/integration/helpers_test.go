package integration

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Ramsey-B/fern/internal/repositories/customfield"
	"github.com/Ramsey-B/fern/internal/repositories/engagement"
	entityrepo "github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/entityrelationship"
	"github.com/Ramsey-B/fern/internal/repositories/identifier"
	"github.com/Ramsey-B/fern/internal/repositories/relationship"
	"github.com/Ramsey-B/fern/internal/repositories/tagging"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/dedupe"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/redis"
)

// testEnv wires the merge engine against real Postgres and Redis containers.
// It is shared by every test in the package; tests isolate themselves by
// using a fresh user ID.
type testEnv struct {
	sqlxDB         *sqlx.DB
	entityRepo     *entityrepo.Repository
	identifierRepo *identifier.Repository
	detector       *dedupe.Detector
	engine         *merging.Engine

	postgres    testcontainers.Container
	redisServer testcontainers.Container
	redisClient *redis.Client
}

var env *testEnv

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	e, err := startTestEnv(context.Background())
	if err != nil {
		fmt.Printf("database-backed tests unavailable: %v\n", err)
		os.Exit(m.Run())
	}
	env = e

	code := m.Run()
	e.stop(context.Background())
	os.Exit(code)
}

// requireEnv skips tests that need the containers when they could not start
// (short mode, or no Docker on the host).
func requireEnv(t *testing.T) *testEnv {
	t.Helper()
	if env == nil {
		t.Skip("requires Postgres and Redis containers")
	}
	return env
}

func startTestEnv(ctx context.Context) (*testEnv, error) {
	e := &testEnv{}

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "fern",
				"POSTGRES_PASSWORD": "fern",
				"POSTGRES_DB":       "fern",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres: %w", err)
	}
	e.postgres = pg

	rd, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		e.stop(ctx)
		return nil, fmt.Errorf("failed to start redis: %w", err)
	}
	e.redisServer = rd

	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {})

	pgHost, err := pg.Host(ctx)
	if err != nil {
		e.stop(ctx)
		return nil, err
	}
	pgPort, err := pg.MappedPort(ctx, "5432")
	if err != nil {
		e.stop(ctx)
		return nil, err
	}

	sqlxDB, err := sqlx.Connect("postgres", fmt.Sprintf("postgres://fern:fern@%s:%s/fern?sslmode=disable", pgHost, pgPort.Port()))
	if err != nil {
		e.stop(ctx)
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	e.sqlxDB = sqlxDB

	driver, err := migratepg.WithInstance(sqlxDB.DB, &migratepg.Config{})
	if err != nil {
		e.stop(ctx)
		return nil, err
	}
	migrationService := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: "../../db/pg",
	})
	if err := migrationService.Migrate("fern", driver); err != nil {
		e.stop(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	rdHost, err := rd.Host(ctx)
	if err != nil {
		e.stop(ctx)
		return nil, err
	}
	rdPort, err := rd.MappedPort(ctx, "6379")
	if err != nil {
		e.stop(ctx)
		return nil, err
	}
	port, err := strconv.Atoi(rdPort.Port())
	if err != nil {
		e.stop(ctx)
		return nil, err
	}
	redisClient, err := redis.NewClient(redis.Config{Host: rdHost, Port: port}, logger)
	if err != nil {
		e.stop(ctx)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	e.redisClient = redisClient

	db := database.NewDatabaseInstance(sqlxDB, logger)

	e.entityRepo = entityrepo.NewRepository(db, logger)
	e.identifierRepo = identifier.NewRepository(db, logger)
	relationshipRepo := relationship.NewRepository(db, logger)
	entityRelRepo := entityrelationship.NewRepository(db, logger)
	engagementRepo := engagement.NewRepository(db, logger)
	customFieldRepo := customfield.NewRepository(db, logger)
	taggingRepo := tagging.NewRepository(db, logger)

	e.detector = dedupe.NewDetector(e.entityRepo, e.identifierRepo, logger, 5000)
	emitter := events.NewEmitter(nil, logger)
	locker := redis.NewLocker(redisClient, "fern-test:")

	e.engine = merging.NewEngine(
		logger,
		e.entityRepo,
		e.identifierRepo,
		relationshipRepo,
		entityRelRepo,
		engagementRepo,
		customFieldRepo,
		taggingRepo,
		e.detector,
		emitter,
		locker,
		30*time.Second,
		5*time.Second,
	)

	return e, nil
}

func (e *testEnv) stop(ctx context.Context) {
	if e.redisClient != nil {
		e.redisClient.Close()
	}
	if e.sqlxDB != nil {
		e.sqlxDB.Close()
	}
	for _, c := range []testcontainers.Container{e.redisServer, e.postgres} {
		if c != nil {
			if err := c.Terminate(ctx); err != nil {
				fmt.Printf("warning: failed to terminate container: %v\n", err)
			}
		}
	}
}

func (e *testEnv) exec(t *testing.T, query string, args ...any) {
	t.Helper()
	_, err := e.sqlxDB.Exec(query, args...)
	require.NoError(t, err)
}

func (e *testEnv) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, e.sqlxDB.Get(&n, query, args...))
	return n
}

func (e *testEnv) seedEntity(t *testing.T, userID, name string, createdAt time.Time) string {
	t.Helper()
	id := uuid.New().String()
	e.exec(t, `INSERT INTO entities (id, user_id, type, name, created_at) VALUES ($1, $2, 'person', $3, $4)`,
		id, userID, name, createdAt)
	return id
}

func (e *testEnv) seedLegacyEntity(t *testing.T, userID, name, externalID, source string, createdAt time.Time) string {
	t.Helper()
	id := uuid.New().String()
	e.exec(t, `INSERT INTO entities (id, user_id, type, name, external_id, source, created_at) VALUES ($1, $2, 'person', $3, $4, $5, $6)`,
		id, userID, name, externalID, source, createdAt)
	return id
}

func (e *testEnv) seedIdentifier(t *testing.T, entityID, typ, value, normalized string, isPrimary bool) string {
	t.Helper()
	id := uuid.New().String()
	e.exec(t, `INSERT INTO identifiers (id, entity_id, type, value, normalized_value, is_primary) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, entityID, typ, value, normalized, isPrimary)
	return id
}

func (e *testEnv) seedInteractions(t *testing.T, userID, entityID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		e.exec(t, `INSERT INTO interactions (user_id, entity_id, type) VALUES ($1, $2, 'call')`, userID, entityID)
	}
}
