package sensorsim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/okian/klynaa/internal/domain/model"
)

// Generate builds the submission sequence for cfg. Each bin's level rises by
// its rate per reading and drops back to zero once it passes 100, as after
// a pickup. A DuplicateRatio share of the sequence resends earlier readings
// unchanged, the way a sensor retries after a lost ack.
func Generate(ctx context.Context, cfg *Config) ([]model.FillReading, int, error) {
	rnd := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // simulation data

	levels := make([]int, len(cfg.Bins))
	for i, b := range cfg.Bins {
		levels[i] = b.Start
	}

	out := make([]model.FillReading, 0, cfg.Readings)
	dups := 0
	ts := time.Now().UTC().Truncate(time.Second)
	for len(out) < cfg.Readings {
		if err := ctx.Err(); err != nil {
			return nil, 0, fmt.Errorf("generation cancelled: %w", err)
		}
		if len(out) > 0 && rnd.Float64() < cfg.DuplicateRatio {
			out = append(out, out[rnd.IntN(len(out))])
			dups++
			continue
		}

		i := rnd.IntN(len(cfg.Bins))
		levels[i] += cfg.Bins[i].Rate
		if levels[i] > 100 {
			levels[i] = 0
		}
		ts = ts.Add(time.Second)
		out = append(out, model.FillReading{
			ReadingID: uuid.NewString(),
			BinID:     cfg.Bins[i].ID,
			FillLevel: levels[i],
			TS:        ts,
		})
	}
	return out, dups, nil
}
