// Package distribution decides which plants a validated lessons-learned card
// must be deployed to, based on its product line and originating plant.
package distribution

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownCategory indicates a product line with no configured
	// distribution list. This is a configuration gap and blocks the record
	// from entering distribution.
	ErrUnknownCategory = errors.New("no distribution configured for product line")
	// ErrUnknownPlant indicates a plant with no configured validator.
	ErrUnknownPlant = errors.New("no validator configured for plant")
)

// Resolver maps product lines to their target plant lists and plants to their
// validator addresses. The configuration is copied at construction and never
// mutated afterwards.
type Resolver struct {
	distribution map[string][]string
	validators   map[string]string
	contacts     map[string]string
}

// NewResolver builds a resolver from the injected plant configuration.
func NewResolver(distribution map[string][]string, validators, contacts map[string]string) *Resolver {
	dist := make(map[string][]string, len(distribution))
	for line, plants := range distribution {
		dist[normalize(line)] = append([]string(nil), plants...)
	}
	vals := make(map[string]string, len(validators))
	for plant, email := range validators {
		vals[normalize(plant)] = email
	}
	cts := make(map[string]string, len(contacts))
	for plant, email := range contacts {
		cts[normalize(plant)] = email
	}
	return &Resolver{distribution: dist, validators: vals, contacts: cts}
}

// Targets returns the ordered set of plants the card must reach, with the
// originating plant removed. The order is stable for display; membership is
// what aggregation cares about.
func (r *Resolver) Targets(productLine, originPlant string) ([]string, error) {
	plants, ok := r.distribution[normalize(productLine)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, productLine)
	}

	origin := normalize(originPlant)
	targets := make([]string, 0, len(plants))
	for _, p := range plants {
		if normalize(p) == origin {
			continue
		}
		targets = append(targets, p)
	}
	return targets, nil
}

// ValidatorFor returns the reviewer address for a plant.
func (r *Resolver) ValidatorFor(plant string) (string, error) {
	email, ok := r.validators[normalize(plant)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlant, plant)
	}
	return email, nil
}

// ContactFor returns the deployment-request address for a distribution site.
func (r *Resolver) ContactFor(plant string) (string, error) {
	email, ok := r.contacts[normalize(plant)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlant, plant)
	}
	return email, nil
}

// normalize folds plant and product line labels to a canonical key: trimmed,
// uppercased, with a trailing " PLANT" suffix dropped so that "CHENNAI Plant"
// and "CHENNAI" name the same site.
func normalize(label string) string {
	key := strings.ToUpper(strings.TrimSpace(label))
	key = strings.TrimSuffix(key, " PLANT")
	return key
}
