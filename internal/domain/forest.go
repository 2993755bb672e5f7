package domain

import (
	"fmt"
	"strings"
)

// ValidateForest rejects names that could escape the data directory.
func ValidateForest(forest string) error {
	if strings.TrimSpace(forest) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidForest)
	}
	if strings.ContainsAny(forest, `/\`) || strings.Contains(forest, "..") || strings.ContainsRune(forest, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidForest, forest)
	}
	return nil
}

// DatasetFileName returns "<forest>_preprocessed.csv".
func DatasetFileName(forest string) string {
	return forest + "_preprocessed.csv"
}

// ModelFileName returns "<forest>_<variant>_model.<ext>".
func ModelFileName(forest string, v Variant, ext string) string {
	return fmt.Sprintf("%s_%s_model.%s", forest, v, strings.TrimPrefix(ext, "."))
}
