package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/veridata-io/recon-engine/pkg/apperrors"
	"github.com/veridata-io/recon-engine/pkg/models"
)

// keyPatterns are the identifier substrings that mark a common column as
// key-like.
var keyPatterns = []string{"id", "key", "pk", "primary_key"}

// KeyInferenceService guesses the reconciliation key columns when the caller
// supplies none.
type KeyInferenceService interface {
	// InferKeys intersects the snapshots' column names case-insensitively
	// and picks key-looking columns by identifier pattern. Every matching
	// column joins one composite key, preserving the intersection order.
	// When no column matches a pattern, the first common column is used,
	// or the full common-column list when compositeFallback is set. An
	// empty intersection returns ErrNoCommonKey.
	InferKeys(snapshots []models.SchemaSnapshot, compositeFallback bool) (models.KeySet, error)

	// ValidateKeys confirms every key column exists in every snapshot,
	// returning ErrKeyColumnNotFound otherwise.
	ValidateKeys(keys models.KeySet, snapshots []models.SchemaSnapshot) error
}

type keyInferenceService struct {
	logger *zap.Logger
}

// NewKeyInferenceService creates a new KeyInferenceService.
func NewKeyInferenceService(logger *zap.Logger) KeyInferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &keyInferenceService{logger: logger}
}

var _ KeyInferenceService = (*keyInferenceService)(nil)

func (s *keyInferenceService) InferKeys(snapshots []models.SchemaSnapshot, compositeFallback bool) (models.KeySet, error) {
	common := commonColumnNames(snapshots)
	if len(common) == 0 {
		return nil, fmt.Errorf("%w: no column name occurs in every dataset", apperrors.ErrNoCommonKey)
	}

	// Every key-looking column joins the composite key, in the order the
	// intersection produced them.
	var keys models.KeySet
	for _, name := range common {
		if matchesKeyPattern(name) {
			keys = append(keys, name)
		}
	}

	if len(keys) == 0 {
		// Nothing key-looking; fall back so a comparison can still run.
		// The report flags inferred keys either way.
		if compositeFallback {
			keys = models.KeySet(common)
		} else {
			keys = models.KeySet{common[0]}
		}
	}

	s.logger.Info("Inferred reconciliation keys",
		zap.String("keys", keys.String()),
		zap.Int("common_columns", len(common)))

	return keys, nil
}

func matchesKeyPattern(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range keyPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func (s *keyInferenceService) ValidateKeys(keys models.KeySet, snapshots []models.SchemaSnapshot) error {
	if err := keys.Validate(); err != nil {
		return err
	}
	for _, key := range keys {
		for _, snap := range snapshots {
			if !snap.HasColumn(key) {
				return fmt.Errorf("%w: column %q missing from %s", apperrors.ErrKeyColumnNotFound, key, snap.Dataset)
			}
		}
	}
	return nil
}

// commonColumnNames returns the names present in every snapshot, in the
// first snapshot's ordinal order.
func commonColumnNames(snapshots []models.SchemaSnapshot) []string {
	if len(snapshots) == 0 {
		return nil
	}

	sets := make([]map[string]struct{}, 0, len(snapshots)-1)
	for _, snap := range snapshots[1:] {
		sets = append(sets, lowerNames(snap))
	}

	var common []string
	for _, col := range snapshots[0].Columns {
		inAll := true
		for _, set := range sets {
			if _, ok := set[strings.ToLower(col.Name)]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			common = append(common, col.Name)
		}
	}
	return common
}
