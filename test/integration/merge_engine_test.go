package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMergeDuplicateEntities_IdentifierCollisionAndDemotion(t *testing.T) {
	e := requireEnv(t)
	ctx := context.Background()
	userID := uuid.New().String()

	primaryID := e.seedEntity(t, userID, "John Doe", baseTime)
	dupID := e.seedEntity(t, userID, "John Doe", baseTime.Add(time.Hour))

	e.seedIdentifier(t, primaryID, "email", "john@example.com", "john@example.com", true)
	// same address in different casing collides and is dropped
	e.seedIdentifier(t, dupID, "email", "JOHN@example.com", "john@example.com", true)
	// the duplicate's primary phone moves but loses its primary flag
	e.seedIdentifier(t, dupID, "phone", "+1 (555) 123-4567", "15551234567", true)

	merged, err := e.engine.MergeDuplicateEntities(ctx, userID, primaryID, []string{dupID})
	require.NoError(t, err)
	require.Len(t, merged.Identifiers, 2)

	byType := map[string]models.Identifier{}
	for _, ident := range merged.Identifiers {
		byType[ident.Type] = ident
	}
	assert.Equal(t, "john@example.com", byType["email"].Value)
	assert.True(t, byType["email"].IsPrimary)
	assert.Equal(t, "+1 (555) 123-4567", byType["phone"].Value)
	assert.False(t, byType["phone"].IsPrimary, "moved identifiers must be demoted")

	_, err = e.entityRepo.Get(ctx, userID, dupID)
	assert.ErrorContains(t, err, "entity not found")
	assert.Zero(t, e.count(t, `SELECT count(*) FROM identifiers WHERE entity_id = $1`, dupID))
}

func TestMergeDuplicateEntities_ConservesDependentRows(t *testing.T) {
	e := requireEnv(t)
	ctx := context.Background()
	userID := uuid.New().String()

	primaryID := e.seedEntity(t, userID, "Jane Smith", baseTime)
	dupID := e.seedEntity(t, userID, "Jane Smith", baseTime.Add(time.Hour))
	otherID := e.seedEntity(t, userID, "Acme Corp", baseTime.Add(2*time.Hour))

	e.seedInteractions(t, userID, primaryID, 1)
	e.seedInteractions(t, userID, dupID, 2)
	e.exec(t, `INSERT INTO conversations (user_id, entity_id, channel) VALUES ($1, $2, 'email')`, userID, dupID)
	e.exec(t, `INSERT INTO reminders (user_id, entity_id, title) VALUES ($1, $2, 'follow up')`, userID, dupID)
	e.exec(t, `INSERT INTO relationships (user_id, entity_id, relationship_type) VALUES ($1, $2, 'friend')`, userID, dupID)
	e.exec(t, `INSERT INTO entity_relationships (user_id, source_entity_id, target_entity_id, relationship_type) VALUES ($1, $2, $3, 'works_at')`, userID, dupID, otherID)

	e.exec(t, `INSERT INTO custom_fields (entity_id, name, category, value) VALUES ($1, 'title', 'work', 'Engineer')`, primaryID)
	e.exec(t, `INSERT INTO custom_fields (entity_id, name, category, value) VALUES ($1, 'title', 'work', 'Manager')`, dupID)
	e.exec(t, `INSERT INTO custom_fields (entity_id, name, category, value) VALUES ($1, 'hobby', 'personal', 'chess')`, dupID)

	tagID := uuid.New().String()
	e.exec(t, `INSERT INTO tags (id, user_id, name) VALUES ($1, $2, $3)`, tagID, userID, "vip-"+userID)
	e.exec(t, `INSERT INTO entity_tags (entity_id, tag_id) VALUES ($1, $2)`, dupID, tagID)

	_, err := e.engine.MergeDuplicateEntities(ctx, userID, primaryID, []string{dupID})
	require.NoError(t, err)

	assert.Equal(t, 3, e.count(t, `SELECT count(*) FROM interactions WHERE entity_id = $1`, primaryID))
	assert.Equal(t, 1, e.count(t, `SELECT count(*) FROM conversations WHERE entity_id = $1`, primaryID))
	assert.Equal(t, 1, e.count(t, `SELECT count(*) FROM reminders WHERE entity_id = $1`, primaryID))
	assert.Equal(t, 1, e.count(t, `SELECT count(*) FROM relationships WHERE entity_id = $1`, primaryID))
	assert.Equal(t, 1, e.count(t, `SELECT count(*) FROM entity_relationships WHERE source_entity_id = $1 AND target_entity_id = $2`, primaryID, otherID))

	// colliding field keeps the primary's value, the non-colliding one moves
	assert.Equal(t, 2, e.count(t, `SELECT count(*) FROM custom_fields WHERE entity_id = $1`, primaryID))
	var title string
	require.NoError(t, e.sqlxDB.Get(&title, `SELECT value FROM custom_fields WHERE entity_id = $1 AND category = 'work' AND name = 'title'`, primaryID))
	assert.Equal(t, "Engineer", title)

	// tag links on the duplicate are dropped, not migrated
	assert.Zero(t, e.count(t, `SELECT count(*) FROM entity_tags WHERE tag_id = $1`, tagID))
}

func TestMergeDuplicateEntities_MetadataPersists(t *testing.T) {
	e := requireEnv(t)
	ctx := context.Background()
	userID := uuid.New().String()

	primaryID := e.seedEntity(t, userID, "Sam Lee", baseTime)
	dupID := e.seedLegacyEntity(t, userID, "Sam Lee", "ext-42", "csv-import", baseTime.Add(time.Hour))

	_, err := e.engine.MergeDuplicateEntities(ctx, userID, primaryID, []string{dupID})
	require.NoError(t, err)

	// re-read outside the merge to prove the metadata was committed
	primary, err := e.entityRepo.Get(ctx, userID, primaryID)
	require.NoError(t, err)

	meta := primary.Metadata.Data
	assert.Equal(t, "ext-42", meta.ExternalIDs["csv-import"])
	assert.Contains(t, meta.Sources, "csv-import")
	assert.Equal(t, 1, meta.MergedCount)
	require.NotNil(t, meta.LastMergedAt)

	// a second merge accumulates on top of the first
	dup2 := e.seedEntity(t, userID, "Sam Lee", baseTime.Add(2*time.Hour))
	_, err = e.engine.MergeDuplicateEntities(ctx, userID, primaryID, []string{dup2})
	require.NoError(t, err)

	primary, err = e.entityRepo.Get(ctx, userID, primaryID)
	require.NoError(t, err)
	assert.Equal(t, 2, primary.Metadata.Data.MergedCount)
}

func TestMergeDuplicateEntities_MissingDuplicateRollsBack(t *testing.T) {
	e := requireEnv(t)
	ctx := context.Background()
	userID := uuid.New().String()

	primaryID := e.seedEntity(t, userID, "Ada King", baseTime)
	dupID := e.seedEntity(t, userID, "Ada King", baseTime.Add(time.Hour))
	e.seedIdentifier(t, dupID, "email", "ada@example.com", "ada@example.com", true)
	e.seedInteractions(t, userID, dupID, 1)

	// the first duplicate migrates, then the unknown one aborts the transaction
	_, err := e.engine.MergeDuplicateEntities(ctx, userID, primaryID, []string{dupID, uuid.New().String()})
	require.Error(t, err)
	assert.ErrorContains(t, err, "entity not found")

	_, err = e.entityRepo.Get(ctx, userID, dupID)
	require.NoError(t, err, "failed merge must leave the duplicate in place")
	assert.Equal(t, 1, e.count(t, `SELECT count(*) FROM identifiers WHERE entity_id = $1`, dupID))
	assert.Equal(t, 1, e.count(t, `SELECT count(*) FROM interactions WHERE entity_id = $1`, dupID))
	assert.Zero(t, e.count(t, `SELECT count(*) FROM identifiers WHERE entity_id = $1`, primaryID))

	primary, err := e.entityRepo.Get(ctx, userID, primaryID)
	require.NoError(t, err)
	assert.Zero(t, primary.Metadata.Data.MergedCount)
}

func TestMergeEntities_TransferCounts(t *testing.T) {
	e := requireEnv(t)
	ctx := context.Background()
	userID := uuid.New().String()

	targetID := e.seedEntity(t, userID, "Target Co", baseTime)
	sourceID := e.seedEntity(t, userID, "Target Company", baseTime.Add(time.Hour))

	e.seedIdentifier(t, targetID, "email", "hello@target.co", "hello@target.co", true)
	e.seedIdentifier(t, sourceID, "email", "hello@target.co", "hello@target.co", false)
	e.seedIdentifier(t, sourceID, "url", "https://target.co", "https://target.co", false)
	e.seedInteractions(t, userID, sourceID, 3)

	tagID := uuid.New().String()
	e.exec(t, `INSERT INTO tags (id, user_id, name) VALUES ($1, $2, $3)`, tagID, userID, "client-"+userID)
	e.exec(t, `INSERT INTO entity_tags (entity_id, tag_id) VALUES ($1, $2)`, sourceID, tagID)

	summary, err := e.engine.MergeEntities(ctx, userID, sourceID, targetID, models.DefaultMergeOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.IdentifiersTransferred, "colliding email must not count as transferred")
	assert.Equal(t, 3, summary.InteractionsTransferred)
	assert.Equal(t, 1, summary.TagsTransferred)

	assert.Equal(t, 3, e.count(t, `SELECT count(*) FROM interactions WHERE entity_id = $1`, targetID))
	assert.Equal(t, 2, e.count(t, `SELECT count(*) FROM identifiers WHERE entity_id = $1`, targetID))
	assert.Equal(t, 1, e.count(t, `SELECT count(*) FROM entity_tags WHERE entity_id = $1`, targetID))

	_, err = e.entityRepo.Get(ctx, userID, sourceID)
	assert.ErrorContains(t, err, "entity not found")
}

func TestMergeEntities_TypeMismatchLeavesBothIntact(t *testing.T) {
	e := requireEnv(t)
	ctx := context.Background()
	userID := uuid.New().String()

	personID := e.seedEntity(t, userID, "Max Roe", baseTime)
	orgID := uuid.New().String()
	e.exec(t, `INSERT INTO entities (id, user_id, type, name, created_at) VALUES ($1, $2, 'organization', 'Roe LLC', $3)`,
		orgID, userID, baseTime.Add(time.Hour))

	_, err := e.engine.MergeEntities(ctx, userID, personID, orgID, models.DefaultMergeOptions())
	require.Error(t, err)
	assert.ErrorContains(t, err, "types do not match")

	_, err = e.entityRepo.Get(ctx, userID, personID)
	assert.NoError(t, err)
	_, err = e.entityRepo.Get(ctx, userID, orgID)
	assert.NoError(t, err)
}

func TestAutoMergeDuplicates_EndToEnd(t *testing.T) {
	e := requireEnv(t)
	ctx := context.Background()
	userID := uuid.New().String()

	oldest := e.seedEntity(t, userID, "Nina Patel", baseTime)
	newer := e.seedEntity(t, userID, "Nina P", baseTime.Add(time.Hour))
	e.seedIdentifier(t, oldest, "email", "nina@example.com", "nina@example.com", true)
	e.seedIdentifier(t, newer, "email", "Nina@Example.com", "nina@example.com", true)
	unrelated := e.seedEntity(t, userID, "Completely Different", baseTime.Add(2*time.Hour))

	summary, err := e.engine.AutoMergeDuplicates(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.MergedGroups)
	assert.Zero(t, summary.FailedGroups)
	assert.Equal(t, 1, summary.TotalDuplicatesRemoved)

	// the oldest entity survives, the unrelated one is untouched
	_, err = e.entityRepo.Get(ctx, userID, oldest)
	assert.NoError(t, err)
	_, err = e.entityRepo.Get(ctx, userID, newer)
	assert.ErrorContains(t, err, "entity not found")
	_, err = e.entityRepo.Get(ctx, userID, unrelated)
	assert.NoError(t, err)
}
