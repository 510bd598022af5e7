// Package dedupe finds entities that likely represent the same real-world
// contact.
package dedupe

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/identifier"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/similarity"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Detector scans a user's entities for duplicate clusters
type Detector struct {
	entityRepo     *entity.Repository
	identifierRepo *identifier.Repository
	logger         ectologger.Logger
	maxEntities    int
}

// NewDetector creates a new duplicate detector. maxEntities caps how many
// entities a single scan loads; owners with more than that get a partial
// scan of their oldest entities rather than an unbounded in-memory pass.
func NewDetector(entityRepo *entity.Repository, identifierRepo *identifier.Repository, logger ectologger.Logger, maxEntities int) *Detector {
	return &Detector{
		entityRepo:     entityRepo,
		identifierRepo: identifierRepo,
		logger:         logger,
		maxEntities:    maxEntities,
	}
}

// FindAllDuplicates clusters the user's non-archived entities into duplicate
// groups. Entities land in the same group when they share an email, share a
// phone number, or have names above the cluster similarity threshold. The
// oldest member of each group is the primary. The scan is read-only.
func (d *Detector) FindAllDuplicates(ctx context.Context, userID string) ([]models.DuplicateGroup, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Detector.FindAllDuplicates")
	defer span.End()

	entities, err := d.loadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	groups := cluster(entities)

	d.logger.WithContext(ctx).WithFields(map[string]any{
		"user_id":  userID,
		"entities": len(entities),
		"groups":   len(groups),
	}).Info("Duplicate scan complete")

	return groups, nil
}

// loadSnapshot loads the user's active entities with their identifiers
// attached, oldest first.
func (d *Detector) loadSnapshot(ctx context.Context, userID string) ([]models.Entity, error) {
	entities, err := d.entityRepo.ListActive(ctx, userID, d.maxEntities)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}

	ids := make([]string, len(entities))
	for i := range entities {
		ids[i] = entities[i].ID
	}

	identifiers, err := d.identifierRepo.ListByEntityIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byEntity := make(map[string][]models.Identifier, len(entities))
	for _, ident := range identifiers {
		byEntity[ident.EntityID] = append(byEntity[ident.EntityID], ident)
	}
	for i := range entities {
		entities[i].Identifiers = byEntity[entities[i].ID]
	}

	return entities, nil
}

// cluster groups duplicate entities. Entities must be sorted oldest first;
// each entity seeds at most one group and never appears in two.
func cluster(entities []models.Entity) []models.DuplicateGroup {
	emailIndex := make(map[string][]int)
	phoneIndex := make(map[string][]int)
	for i := range entities {
		for _, ident := range entities[i].Identifiers {
			value := normalizedValue(ident)
			if value == "" {
				continue
			}
			switch ident.Type {
			case models.IdentifierTypeEmail:
				emailIndex[value] = append(emailIndex[value], i)
			case models.IdentifierTypePhone:
				phoneIndex[value] = append(phoneIndex[value], i)
			}
		}
	}

	visited := make(map[string]bool, len(entities))
	var groups []models.DuplicateGroup

	for i := range entities {
		seed := &entities[i]
		if visited[seed.ID] {
			continue
		}

		memberIdx := []int{i}
		seen := map[int]bool{i: true}
		add := func(j int) {
			if !seen[j] && !visited[entities[j].ID] {
				seen[j] = true
				memberIdx = append(memberIdx, j)
			}
		}

		for _, ident := range seed.Identifiers {
			value := normalizedValue(ident)
			if value == "" {
				continue
			}
			switch ident.Type {
			case models.IdentifierTypeEmail:
				for _, j := range emailIndex[value] {
					add(j)
				}
			case models.IdentifierTypePhone:
				for _, j := range phoneIndex[value] {
					add(j)
				}
			}
		}

		for j := range entities {
			if j == i {
				continue
			}
			if similarity.Name(seed.Name, entities[j].Name) > similarity.ClusterThreshold {
				add(j)
			}
		}

		if len(memberIdx) < 2 {
			continue
		}

		members := make([]models.Entity, 0, len(memberIdx))
		for _, j := range memberIdx {
			members = append(members, entities[j])
		}
		sort.SliceStable(members, func(a, b int) bool {
			if members[a].CreatedAt.Equal(members[b].CreatedAt) {
				return members[a].ID < members[b].ID
			}
			return members[a].CreatedAt.Before(members[b].CreatedAt)
		})

		for _, m := range members {
			visited[m.ID] = true
		}

		groups = append(groups, models.DuplicateGroup{
			Primary:      members[0],
			Duplicates:   members[1:],
			MatchReasons: matchReasons(members[0], members[1:]),
		})
	}

	return groups
}

// matchReasons explains why each duplicate matched the primary. Reasons are
// de-duplicated and keep insertion order.
func matchReasons(primary models.Entity, duplicates []models.Entity) []string {
	var reasons []string
	seen := make(map[string]bool)
	add := func(reason string) {
		if !seen[reason] {
			seen[reason] = true
			reasons = append(reasons, reason)
		}
	}

	for _, dup := range duplicates {
		if shared := sharedValues(primary, dup, models.IdentifierTypeEmail); len(shared) > 0 {
			add("email: " + strings.Join(shared, ", "))
		}
		if shared := sharedValues(primary, dup, models.IdentifierTypePhone); len(shared) > 0 {
			add("phone: " + strings.Join(shared, ", "))
		}
		if score := similarity.Name(primary.Name, dup.Name); score > similarity.ClusterThreshold {
			add(fmt.Sprintf("name similarity: %.1f%%", score*100))
		}
	}

	return reasons
}

// sharedValues returns the identifier values of the given type that both
// entities carry, in the primary's identifier order.
func sharedValues(primary, dup models.Entity, identType string) []string {
	dupValues := make(map[string]bool)
	for _, ident := range dup.Identifiers {
		if ident.Type != identType {
			continue
		}
		if value := normalizedValue(ident); value != "" {
			dupValues[value] = true
		}
	}

	var shared []string
	seen := make(map[string]bool)
	for _, ident := range primary.Identifiers {
		if ident.Type != identType {
			continue
		}
		value := normalizedValue(ident)
		if value != "" && dupValues[value] && !seen[value] {
			seen[value] = true
			shared = append(shared, value)
		}
	}

	return shared
}

func normalizedValue(ident models.Identifier) string {
	if ident.NormalizedValue != "" {
		return ident.NormalizedValue
	}
	return normalizers.ForIdentifier(ident.Type, ident.Value)
}
