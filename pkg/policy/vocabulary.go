package policy

import (
	"strings"

	"github.com/polisai/neurogov/pkg/domain"
)

// NeurorightsTags is the closed tag vocabulary. A tag is accepted when it
// equals an entry or uses one as a literal prefix (e.g. "neurorights.privacy.eeg").
var NeurorightsTags = []string{
	"neurorights.privacy",
	"neurorights.agency",
	"neurorights.identity",
	"neurorights.equality",
	"neurorights.protection",
	"neurorights.freedom",
}

// ValidTag reports whether tag belongs to the vocabulary.
func ValidTag(tag string) bool {
	for _, v := range NeurorightsTags {
		if strings.HasPrefix(tag, v) {
			return true
		}
	}
	return false
}

// ValidateTags returns an InvalidTag error naming the first rejected tag.
func ValidateTags(tags []string) error {
	for _, tag := range tags {
		if !ValidTag(tag) {
			return domain.NewError(domain.ErrInvalidTag, domain.CodeInvalidTag, map[string]any{"tag": tag}, "%q", tag)
		}
	}
	return nil
}
