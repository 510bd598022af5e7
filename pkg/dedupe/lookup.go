package dedupe

import (
	"context"
	"sort"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/similarity"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Lookup describes a prospective contact to check against existing entities.
type Lookup struct {
	Name  string
	Email string
	Phone string
}

// FindDuplicates returns the user's existing entities that resemble the
// prospective contact, best matches first. Email and phone match exactly on
// normalized values; names fuzzy-match above the lookup threshold, which is
// deliberately looser than the cluster detector's and only applies to names
// longer than a couple of characters.
func (d *Detector) FindDuplicates(ctx context.Context, userID string, lookup Lookup) ([]models.DuplicateMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "dedupe.Detector.FindDuplicates")
	defer span.End()

	entities, err := d.loadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	return matchLookup(entities, lookup), nil
}

// matchLookup scores each entity against the prospective contact.
func matchLookup(entities []models.Entity, lookup Lookup) []models.DuplicateMatch {
	email := normalizers.NormalizeEmail(lookup.Email)
	phone := normalizers.NormalizePhone(lookup.Phone)
	name := strings.TrimSpace(lookup.Name)

	var matches []models.DuplicateMatch
	for _, e := range entities {
		var matchedOn []string
		score := 0.0

		if email != "" && hasIdentifierValue(e, models.IdentifierTypeEmail, email) {
			matchedOn = append(matchedOn, "email")
			score = 1.0
		}
		if phone != "" && hasIdentifierValue(e, models.IdentifierTypePhone, phone) {
			matchedOn = append(matchedOn, "phone")
			score = 1.0
		}
		if len(name) > similarity.LookupMinNameLen {
			if s := similarity.Name(name, e.Name); s > similarity.LookupThreshold {
				matchedOn = append(matchedOn, "name")
				if s > score {
					score = s
				}
			}
		}

		if len(matchedOn) == 0 {
			continue
		}

		matches = append(matches, models.DuplicateMatch{
			Entity:    e,
			Score:     score,
			MatchedOn: matchedOn,
		})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})

	return matches
}

func hasIdentifierValue(e models.Entity, identType, value string) bool {
	for _, ident := range e.Identifiers {
		if ident.Type == identType && normalizedValue(ident) == value {
			return true
		}
	}
	return false
}
