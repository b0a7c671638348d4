package sources

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/okian/painpoint/internal/domain/model"
)

// FixtureName is the registry name of the synthetic collector.
const FixtureName = "fixture"

// Phrase pools for synthetic mentions.
var (
	fixtureTriggers = []string{ //nolint:gochecknoglobals // generator tables
		"Need a tool for", "Looking for a tool to handle", "Wish there was software for",
		"Tired of manually doing", "Paying too much for", "Is there an app for",
	}
	fixtureProblems = []string{ //nolint:gochecknoglobals // generator tables
		"client invoices", "team shift scheduling", "saas churn analytics", "contractor timesheets",
		"restaurant inventory", "podcast show notes", "freelance contracts", "dental appointment reminders",
	}
	fixtureTails = []string{ //nolint:gochecknoglobals // generator tables
		"", " and I would pay for it", ". Our business loses hours every week.",
		". Spreadsheets are not cutting it.", ", current options cost $2,000/month",
	}
	fixtureNoise = []string{ //nolint:gochecknoglobals // generator tables
		"What is everyone reading this week?", "Show off your desk setup", "Weekly hiring thread",
	}
)

// noiseEvery makes roughly one in this many mentions trigger-less.
const noiseEvery = 7

// Fixture generates deterministic mentions for demos and tests. The same seed
// always yields the same mentions, relative to the clock.
type Fixture struct {
	seed  int64
	count int
	now   func() time.Time
}

// NewFixture builds the collector.
func NewFixture(seed int64, count int, now func() time.Time) *Fixture {
	if now == nil {
		now = time.Now
	}
	return &Fixture{seed: seed, count: count, now: now}
}

func (f *Fixture) Name() string { return FixtureName }

func (f *Fixture) FetchMentions(ctx context.Context) ([]model.RawMention, error) {
	if err := ctx.Err(); err != nil {
		return nil, Unavailable(FixtureName, err)
	}
	rng := rand.New(rand.NewSource(f.seed)) //nolint:gosec // deterministic fixture data
	now := f.now().UTC().Truncate(time.Hour)

	out := make([]model.RawMention, 0, f.count)
	for i := 0; i < f.count; i++ {
		var text string
		if i%noiseEvery == noiseEvery-1 {
			text = fixtureNoise[rng.Intn(len(fixtureNoise))]
		} else {
			text = fixtureTriggers[rng.Intn(len(fixtureTriggers))] + " " +
				fixtureProblems[rng.Intn(len(fixtureProblems))] +
				fixtureTails[rng.Intn(len(fixtureTails))]
		}
		out = append(out, model.RawMention{
			ExternalID: fmt.Sprintf("fx-%d-%04d", f.seed, i),
			Source:     FixtureName,
			Text:       text,
			URL:        fmt.Sprintf("https://fixture.local/posts/%d/%d", f.seed, i),
			Author:     fmt.Sprintf("user%02d", rng.Intn(40)),
			ObservedAt: now.Add(-time.Duration(rng.Intn(7*24)) * time.Hour),
			Engagement: model.Engagement{Upvotes: rng.Intn(60), Comments: rng.Intn(25)},
		})
	}
	return out, nil
}
