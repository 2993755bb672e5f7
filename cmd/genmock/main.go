// Command genmock writes synthetic forest artifacts: a preprocessed daily
// table and both JSON model variants per forest. The output is deterministic
// for a given seed, so it can back local runs and demos.
//
// Usage:
//
//	go run ./cmd/genmock -dir data -forests "Coconino,Tongass,White Mountain" -rows 3650
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/synth"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dir := flag.String("dir", "data", "output directory")
	forests := flag.String("forests", "Coconino,Tongass,White Mountain", "comma-separated forest names")
	rows := flag.Int("rows", 3650, "daily rows per forest")
	seed := flag.Uint64("seed", 1, "random seed; each forest uses seed+index")
	flag.Parse()

	if *rows <= 0 {
		flag.Usage()
		return fmt.Errorf("-rows must be positive")
	}

	for i, forest := range strings.Split(*forests, ",") {
		forest = strings.TrimSpace(forest)
		if err := domain.ValidateForest(forest); err != nil {
			return err
		}
		if err := synth.WriteForest(*dir, forest, *rows, *seed+uint64(i)); err != nil {
			return fmt.Errorf("%s: %w", forest, err)
		}
		fmt.Printf("Wrote %s: %s rows, base and smote models\n", forest, humanize.Comma(int64(*rows)))
	}
	return nil
}
